package inmemory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/ragrouter/models"
)

// LRU is an in-process cache with per-entry TTL and a capacity bound.
type LRU struct {
	mu   sync.Mutex
	cap  int
	list *list.List // front = most recent
	m    map[string]*list.Element
	now  func() time.Time
}

type lruEntry struct {
	key string
	val []byte
	exp time.Time
}

func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LRU{cap: capacity, list: list.New(), m: make(map[string]*list.Element, capacity), now: time.Now}
}

func (l *LRU) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		ent := el.Value.(lruEntry)
		if ent.exp.IsZero() || ent.exp.After(l.now()) {
			l.list.MoveToFront(el)
			out := make([]byte, len(ent.val))
			copy(out, ent.val)
			return out, nil
		}
		// expired
		l.list.Remove(el)
		delete(l.m, key)
	}
	return nil, models.ErrCacheMiss
}

// Set stores a copy of val. A non-positive ttl keeps the entry until evicted.
func (l *LRU) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = l.now().Add(ttl)
	}
	buf := make([]byte, len(val))
	copy(buf, val)
	ent := lruEntry{key: key, val: buf, exp: exp}
	if el, ok := l.m[key]; ok {
		el.Value = ent
		l.list.MoveToFront(el)
		return nil
	}
	l.m[key] = l.list.PushFront(ent)
	if l.list.Len() > l.cap {
		if lru := l.list.Back(); lru != nil {
			delete(l.m, lru.Value.(lruEntry).key)
			l.list.Remove(lru)
		}
	}
	return nil
}

func (l *LRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list.Len()
}

func (l *LRU) Ping(context.Context) error { return nil }

func (l *LRU) Close() error { return nil }
