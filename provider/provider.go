package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/models"
	openai_provider "github.com/mohammad-safakhou/ragrouter/provider/openai"
	"go.uber.org/zap"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI   Client = "openai"
	DeepSeek Client = "deepseek"
)

// ErrUnsupportedProvider is returned for unknown llm.type values
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Complete(ctx context.Context, messages []models.Message, opts models.CompletionOptions) (string, error)
	CallFunction(ctx context.Context, messages []models.Message, fn models.Function, opts models.CompletionOptions) (models.FunctionCall, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates a new LLM client based on the provided configuration.
// DeepSeek speaks the OpenAI wire protocol and shares its client.
func NewProvider(cfg config.LLMConfig, logger *zap.Logger) (Provider, error) {
	switch Client(strings.ToLower(cfg.Type)) {
	case OpenAI, DeepSeek, "":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewOpenAIClient(openai_provider.Options{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			CompletionModel:   cfg.ChatModel,
			EmbeddingModel:    cfg.EmbeddingModel,
			Temperature:       cfg.Temperature,
			MaxTokens:         cfg.MaxTokens,
			Timeout:           cfg.Timeout,
			MaxRetries:        cfg.MaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Type)
	}
}
