package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/repository/inmemory"
	"github.com/mohammad-safakhou/ragrouter/repository/redis_repository"
	"go.uber.org/zap"
)

// Cache is the key-value store shared by the tool-result and answer caches
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

type RepoType string

const (
	RepoTypeRedis  RepoType = "redis"
	RepoTypeMemory RepoType = "memory"
)

// NewCache builds the configured store. Redis is connected and pinged.
func NewCache(ctx context.Context, cfg config.CacheConfig, redisCfg config.RedisConfig, logger *zap.Logger) (Cache, error) {
	switch RepoType(cfg.Type) {
	case RepoTypeRedis:
		c, err := redis_repository.Conn(ctx, redisCfg.Host, redisCfg.Port, redisCfg.Password, redisCfg.DB, redisCfg.Timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return redis_repository.NewRedisCache(c), nil
	case RepoTypeMemory:
		return inmemory.NewLRU(cfg.MaxEntries), nil
	}
	return nil, fmt.Errorf("invalid repository type: %s", cfg.Type)
}

// ToolKey derives the cache key for (tool, normalized params). Param keys are
// sorted and values trimmed, lower-cased and whitespace-collapsed so equivalent
// requests share an entry.
func ToolKey(tool models.SourceID, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(strings.ToLower(strings.TrimSpace(k)))
		b.WriteByte('=')
		b.WriteString(normalize(params[k]))
		b.WriteByte('\n')
	}
	return "tool:" + string(tool) + ":" + sha1Hex(b.String())
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// ToolCache stores successful tool results by (tool, params)
type ToolCache struct {
	store Cache
}

func NewToolCache(store Cache) *ToolCache {
	return &ToolCache{store: store}
}

// Get returns the cached result and whether it was found. Undecodable
// entries count as misses.
func (c *ToolCache) Get(ctx context.Context, tool models.SourceID, params map[string]string) (models.ToolResult, bool, error) {
	raw, err := c.store.Get(ctx, ToolKey(tool, params))
	if err != nil {
		if errors.Is(err, models.ErrCacheMiss) {
			return models.ToolResult{}, false, nil
		}
		return models.ToolResult{}, false, err
	}
	var res models.ToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return models.ToolResult{}, false, nil
	}
	return res, true, nil
}

func (c *ToolCache) Set(ctx context.Context, tool models.SourceID, params map[string]string, res models.ToolResult, ttl time.Duration) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, ToolKey(tool, params), raw, ttl)
}

// AnswerCache stores synthesized answers keyed by (query, citations)
type AnswerCache struct {
	store Cache
	ttl   time.Duration
}

func NewAnswerCache(store Cache, ttl time.Duration) *AnswerCache {
	return &AnswerCache{store: store, ttl: ttl}
}

// AnswerKey derives the cache key; citation order is significant.
func AnswerKey(query string, citations []string) string {
	return "answer:" + sha1Hex(query+"\x00"+strings.Join(citations, "\x1f"))
}

func (c *AnswerCache) Get(ctx context.Context, query string, citations []string) (string, bool, error) {
	raw, err := c.store.Get(ctx, AnswerKey(query, citations))
	if err != nil {
		if errors.Is(err, models.ErrCacheMiss) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(raw), true, nil
}

func (c *AnswerCache) Set(ctx context.Context, query string, citations []string, answer string) error {
	return c.store.Set(ctx, AnswerKey(query, citations), []byte(answer), c.ttl)
}
