package knowledge

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/knowledge/bleve_index"
	"github.com/mohammad-safakhou/ragrouter/knowledge/models"
	"go.uber.org/zap"
)

var ErrNoDocuments = errors.New("no documents provided")

// Embedder turns texts into vectors. A nil Embedder keeps the store
// lexical-only.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Store ingests documents into the local index and retrieves hits by
// hybrid BM25 + vector search fused with RRF.
type Store struct {
	index    *bleve_index.Index
	embedder Embedder
	cfg      config.KnowledgeConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewStore(cfg config.KnowledgeConfig, embedder Embedder, logger *zap.Logger) (*Store, error) {
	cfg = cfg.Normalize()
	ix, err := bleve_index.Open(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	if !cfg.UseVectors {
		embedder = nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{index: ix, embedder: embedder, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Ingest chunks and indexes docs. Chunk ids derive from the content hash so
// re-ingesting the same text overwrites rather than duplicates.
func (s *Store) Ingest(ctx context.Context, docs []models.DocInput) (models.IngestResponse, error) {
	if len(docs) == 0 {
		return models.IngestResponse{}, ErrNoDocuments
	}
	var (
		chunks []models.DocChunk
		resp   models.IngestResponse
	)
	now := s.now()
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		resp.Documents++
		hash := sha1Hex(doc.Text)
		for i, part := range MakeChunks(doc.Text, s.cfg.ChunkSize, s.cfg.ChunkOverlap) {
			chunks = append(chunks, models.DocChunk{
				DocID:       fmt.Sprintf("%s#%03d", hash, i),
				URL:         doc.URL,
				Title:       doc.Title,
				Text:        part,
				PublishedAt: doc.PublishedAt,
				ContentHash: hash,
				IngestedAt:  now,
				ChunkIndex:  i,
			})
		}
	}
	if len(chunks) == 0 {
		return models.IngestResponse{}, ErrNoDocuments
	}
	if err := s.index.AddChunks(chunks); err != nil {
		return models.IngestResponse{}, fmt.Errorf("failed to add chunks: %w", err)
	}
	resp.Chunks = len(chunks)

	if s.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vecs, err := s.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return resp, fmt.Errorf("embed chunks: %w", err)
		}
		for i, v := range vecs {
			s.index.SetVector(chunks[i].DocID, v)
		}
		if err := s.index.SaveVectors(); err != nil {
			return resp, fmt.Errorf("save vectors: %w", err)
		}
		resp.Vectors = len(vecs)
	}
	s.logger.Info("knowledge ingested",
		zap.Int("documents", resp.Documents),
		zap.Int("chunks", resp.Chunks),
		zap.Int("vectors", resp.Vectors))
	return resp, nil
}

// Retrieve returns up to top_k hits for query. A vector-side failure
// degrades to lexical results.
func (s *Store) Retrieve(ctx context.Context, query string) ([]models.SearchHit, error) {
	k := s.cfg.TopK
	bm, err := s.index.Bm25Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	relevance := map[string]float64{}
	for i, h := range bm {
		bm[i].Relevance = lexicalRelevance(h.Score)
		relevance[h.DocID] = bm[i].Relevance
	}
	if s.embedder == nil || s.index.VectorCount() == 0 {
		return bm, nil
	}
	qvecs, err := s.embedder.EmbedMany(ctx, []string{query})
	if err != nil || len(qvecs) == 0 {
		s.logger.Warn("query embedding failed, using lexical hits", zap.Error(err))
		return bm, nil
	}
	vec := s.index.VectorSearch(qvecs[0], k)
	for _, h := range vec {
		if h.Score > relevance[h.DocID] {
			relevance[h.DocID] = h.Score
		}
	}
	hits := bleve_index.FuseRRF(bm, vec, k)
	if err := s.index.Hydrate(hits); err != nil {
		return nil, fmt.Errorf("hydrate hits: %w", err)
	}
	for i := range hits {
		hits[i].Relevance = relevance[hits[i].DocID]
	}
	return hits, nil
}

// lexicalRelevance squashes an unbounded BM25 score into [0,1).
func lexicalRelevance(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (score + 1)
}

func (s *Store) Stats() (models.Stats, error) {
	n, err := s.index.DocCount()
	if err != nil {
		return models.Stats{}, err
	}
	return models.Stats{Chunks: n, Vectors: s.index.VectorCount(), Path: s.index.Path()}, nil
}

// Ping reports whether the index answers a count.
func (s *Store) Ping(context.Context) error {
	_, err := s.index.DocCount()
	return err
}

func (s *Store) Close() error {
	return s.index.Close()
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// MakeChunks splits text into windows of approx runes that overlap by
// overlap runes.
func MakeChunks(text string, approx, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= approx {
		return []string{string(runes)}
	}
	if overlap >= approx {
		overlap = 0
	}
	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+approx, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
