package embedding

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/ragrouter/provider"
)

// Embedding batches texts through the provider's embedding endpoint.
type Embedding struct {
	provider  provider.Provider
	batchSize int
}

type EmbedVec struct {
	DocID string    `json:"doc_id"`
	Vec   []float32 `json:"vec"`
}

func NewEmbedding(provider provider.Provider) *Embedding {
	return &Embedding{
		provider:  provider,
		batchSize: 64,
	}
}

func (e *Embedding) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.provider.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedding: got %d vectors for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
