package embedding

import (
	"context"
	"testing"

	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls []int
	short bool
}

func (p *countingProvider) Complete(context.Context, []models.Message, models.CompletionOptions) (string, error) {
	return "", nil
}

func (p *countingProvider) CallFunction(context.Context, []models.Message, models.Function, models.CompletionOptions) (models.FunctionCall, error) {
	return models.FunctionCall{}, nil
}

func (p *countingProvider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	p.calls = append(p.calls, len(texts))
	n := len(texts)
	if p.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

func TestEmbedManyBatches(t *testing.T) {
	p := &countingProvider{}
	e := NewEmbedding(p)
	e.batchSize = 2
	vecs, err := e.EmbedMany(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, p.calls)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(3), vecs[2][0])
}

func TestEmbedManyCountMismatch(t *testing.T) {
	_, err := NewEmbedding(&countingProvider{short: true}).EmbedMany(context.Background(), []string{"a"})
	require.Error(t, err)
}

func TestEmbedManyEmpty(t *testing.T) {
	vecs, err := NewEmbedding(&countingProvider{}).EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
