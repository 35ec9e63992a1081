package bleve_index

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/mohammad-safakhou/ragrouter/knowledge/models"
)

const rrfK = 60 // reciprocal-rank-fusion constant

var storedFields = []string{"url", "title", "text"}

// Index is the local knowledge base: a bleve BM25 index plus an optional
// set of chunk embeddings kept beside it.
type Index struct {
	path    string
	bleve   bleve.Index
	mu      sync.RWMutex
	vectors map[string][]float32
}

// Open opens the index at path, creating it when missing. An empty path
// gives a memory-only index.
func Open(path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	default:
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open index %q: %w", path, err)
	}
	ix := &Index{path: path, bleve: idx, vectors: map[string][]float32{}}
	if err := ix.loadVectors(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) vectorsPath() string { return ix.path + ".vectors.json" }

func (ix *Index) loadVectors() error {
	if ix.path == "" {
		return nil
	}
	raw, err := os.ReadFile(ix.vectorsPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	return json.Unmarshal(raw, &ix.vectors)
}

// SaveVectors persists the embeddings next to the bleve index.
func (ix *Index) SaveVectors() error {
	if ix.path == "" {
		return nil
	}
	ix.mu.RLock()
	raw, err := json.Marshal(ix.vectors)
	ix.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(ix.vectorsPath(), raw, 0o644)
}

// AddChunks indexes chunks in one batch.
func (ix *Index) AddChunks(chunks []models.DocChunk) error {
	b := ix.bleve.NewBatch()
	for _, c := range chunks {
		if err := b.Index(c.DocID, c); err != nil {
			return fmt.Errorf("index %s: %w", c.DocID, err)
		}
	}
	return ix.bleve.Batch(b)
}

func (ix *Index) SetVector(docID string, v []float32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[docID] = v
}

func (ix *Index) VectorCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

func (ix *Index) DocCount() (uint64, error) {
	return ix.bleve.DocCount()
}

func (ix *Index) Path() string { return ix.path }

func (ix *Index) Close() error {
	return ix.bleve.Close()
}

// Bm25Search runs a match query over the chunk text and title.
func (ix *Index) Bm25Search(q string, k int) ([]models.SearchHit, error) {
	query := bleve.NewMatchQuery(q)
	req := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	req.Fields = storedFields
	res, err := ix.bleve.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchHit, 0, min(k, len(res.Hits)))
	for i, hit := range res.Hits {
		h := hitFromFields(hit.ID, hit.Fields)
		h.Score = hit.Score
		h.Rank = i + 1
		out = append(out, h)
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// VectorSearch ranks stored embeddings by cosine similarity. Hits carry
// only the doc id; Hydrate fills the rest.
func (ix *Index) VectorSearch(q []float32, k int) []models.SearchHit {
	ix.mu.RLock()
	type scored struct {
		id    string
		score float64
	}
	scoreds := make([]scored, 0, len(ix.vectors))
	for id, v := range ix.vectors {
		scoreds = append(scoreds, scored{id: id, score: cosine(q, v)})
	}
	ix.mu.RUnlock()
	sort.Slice(scoreds, func(i, j int) bool {
		if scoreds[i].score != scoreds[j].score {
			return scoreds[i].score > scoreds[j].score
		}
		return scoreds[i].id < scoreds[j].id
	})
	out := make([]models.SearchHit, 0, min(k, len(scoreds)))
	for i, sc := range scoreds {
		if i >= k {
			break
		}
		out = append(out, models.SearchHit{DocID: sc.id, Score: sc.score, Rank: i + 1})
	}
	return out
}

// Hydrate loads url/title/text for hits that lack text.
func (ix *Index) Hydrate(hits []models.SearchHit) error {
	var ids []string
	for _, h := range hits {
		if h.Text == "" {
			ids = append(ids, h.DocID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids), len(ids), 0, false)
	req.Fields = storedFields
	res, err := ix.bleve.Search(req)
	if err != nil {
		return err
	}
	byID := make(map[string]models.SearchHit, len(res.Hits))
	for _, hit := range res.Hits {
		byID[hit.ID] = hitFromFields(hit.ID, hit.Fields)
	}
	for i, h := range hits {
		if h.Text != "" {
			continue
		}
		if full, ok := byID[h.DocID]; ok {
			hits[i].URL, hits[i].Title, hits[i].Text = full.URL, full.Title, full.Text
		}
	}
	return nil
}

// FuseRRF merges two ranked lists by reciprocal rank. Metadata comes from
// the first list that saw the doc.
func FuseRRF(a, b []models.SearchHit, k int) []models.SearchHit {
	type agg struct {
		item  models.SearchHit
		score float64
	}
	m := map[string]*agg{}
	var order []string
	add := func(list []models.SearchHit) {
		for _, h := range list {
			x, ok := m[h.DocID]
			if !ok {
				x = &agg{item: h}
				m[h.DocID] = x
				order = append(order, h.DocID)
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)
	sort.SliceStable(order, func(i, j int) bool { return m[order[i]].score > m[order[j]].score })
	n := min(k, len(order))
	out := make([]models.SearchHit, 0, n)
	for i := 0; i < n; i++ {
		x := m[order[i]]
		x.item.Score = x.score
		x.item.Rank = i + 1
		out = append(out, x.item)
	}
	return out
}

func hitFromFields(id string, fields map[string]interface{}) models.SearchHit {
	str := func(k string) string {
		s, _ := fields[k].(string)
		return s
	}
	return models.SearchHit{DocID: id, URL: str("url"), Title: str("title"), Text: str("text")}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
