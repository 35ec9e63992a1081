package openai_provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(Options{
		APIKey:          "sk-test",
		BaseURL:         srv.URL,
		CompletionModel: "deepseek-chat",
		EmbeddingModel:  "embed-small",
		Temperature:     0.7,
		MaxTokens:       256,
		Timeout:         time.Second,
	}, zaptest.NewLogger(t))
}

func TestCallFunctionForcesToolChoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "select_sources", req.ToolChoice.Function.Name)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"function":{"name":"select_sources","arguments":"{\"sources\":[\"weather\"],\"reasoning\":\"forecast\"}"}}]}}]}`))
	})

	call, err := c.CallFunction(context.Background(),
		[]models.Message{{Role: "user", Content: "weather in Sha Tin"}},
		models.Function{Name: "select_sources", Parameters: map[string]any{"type": "object"}},
		models.CompletionOptions{Temperature: models.Temperature(0.3)})
	require.NoError(t, err)
	assert.Equal(t, "select_sources", call.Name)
	assert.JSONEq(t, `{"sources":["weather"],"reasoning":"forecast"}`, string(call.Arguments))
}

func TestCallFunctionWithoutToolCallFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	})
	_, err := c.CallFunction(context.Background(), nil, models.Function{Name: "analyze_query"}, models.CompletionOptions{})
	require.Error(t, err)
}

func TestCompleteReturnsContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"42"}}]}`))
	})
	out, err := c.Complete(context.Background(), []models.Message{{Role: "user", Content: "6*7"}}, models.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "42", out)
}

func TestCompleteNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Complete(context.Background(), nil, models.CompletionOptions{})
	require.ErrorIs(t, err, ErrNoChoices)
}

func TestCreateEmbeddingOrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	})
	vecs, err := c.CreateEmbedding(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestDescribeImageSendsDataURL(t *testing.T) {
	img := []byte("\x89PNG\r\n\x1a\nfake")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req visionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		assert.Equal(t, 256, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		parts := req.Messages[0].Content
		require.Len(t, parts, 2)
		assert.Equal(t, "text", parts[0].Type)
		assert.Equal(t, DefaultImagePrompt, parts[0].Text)
		assert.Equal(t, "image_url", parts[1].Type)
		require.NotNil(t, parts[1].ImageURL)
		assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(img), parts[1].ImageURL.URL)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" The Hong Kong Observatory emblem. "}}]}`))
	})

	desc, err := c.DescribeImage(context.Background(), img, "image/png", "")
	require.NoError(t, err)
	assert.Equal(t, "The Hong Kong Observatory emblem.", desc)
}

func TestDescribeImageFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"image too large"}}`))
	})
	_, err := c.DescribeImage(context.Background(), []byte("img"), "image/jpeg", "what is this?")
	require.Error(t, err)

	_, err = c.DescribeImage(context.Background(), nil, "image/png", "")
	require.Error(t, err)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  "}}]}`))
	})
	_, err = c.DescribeImage(context.Background(), []byte("img"), "image/png", "")
	require.Error(t, err)
}
