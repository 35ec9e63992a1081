package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/telemetry"
	"github.com/mohammad-safakhou/ragrouter/knowledge"
	"github.com/mohammad-safakhou/ragrouter/provider"
	openai_provider "github.com/mohammad-safakhou/ragrouter/provider/openai"
	"github.com/mohammad-safakhou/ragrouter/repository"
	"github.com/mohammad-safakhou/ragrouter/tools/attachments"
	"github.com/mohammad-safakhou/ragrouter/tools/embedding"
	"github.com/mohammad-safakhou/ragrouter/tools/finance"
	"github.com/mohammad-safakhou/ragrouter/tools/transport"
	"github.com/mohammad-safakhou/ragrouter/tools/weather"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch"
	"github.com/mohammad-safakhou/ragrouter/tools/web_search"
	"github.com/mohammad-safakhou/ragrouter/tools/worldclock"
	"go.uber.org/zap"
)

// attachmentMaxChars caps the text kept per attached file.
const attachmentMaxChars = 50000

// Services bundles the long-lived collaborators built from configuration.
type Services struct {
	Orchestrator *Orchestrator
	LLM          provider.Provider
	Cache        repository.Cache
	Knowledge    *knowledge.Store
	Fetcher      web_fetch.WebFetcher
	Attachments  *attachments.Parser
	// IngestParser reads uploads for indexing; it does not truncate.
	IngestParser *attachments.Parser
	Telemetry    *telemetry.Telemetry
}

// NewLLMProvider creates the chat client used for analysis, routing and
// synthesis.
func NewLLMProvider(cfg config.LLMConfig, logger *zap.Logger) (provider.Provider, error) {
	p, err := provider.NewProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return p, nil
}

// NewKnowledgeStore opens the local index, with vectors when configured.
func NewKnowledgeStore(cfg config.KnowledgeConfig, llm provider.Provider, logger *zap.Logger) (*knowledge.Store, error) {
	var emb knowledge.Embedder
	if cfg.UseVectors && llm != nil {
		emb = embedding.NewEmbedding(llm)
	}
	store, err := knowledge.NewStore(cfg, emb, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	return store, nil
}

// NewImageDescriber returns the vision client, or nil when tools.vision is
// disabled or no API key is available. Key and base URL default to the llm
// section.
func NewImageDescriber(cfg config.VisionConfig, llm config.LLMConfig, logger *zap.Logger) attachments.ImageDescriber {
	if !cfg.Enabled {
		return nil
	}
	key, base := cfg.APIKey, cfg.BaseURL
	if key == "" {
		key = llm.APIKey
	}
	if base == "" {
		base = llm.BaseURL
	}
	if key == "" {
		if logger != nil {
			logger.Warn("image description disabled: no api key")
		}
		return nil
	}
	return openai_provider.NewOpenAIClient(openai_provider.Options{
		APIKey:          key,
		BaseURL:         base,
		CompletionModel: cfg.Model,
		MaxTokens:       cfg.MaxTokens,
		Timeout:         cfg.Timeout,
	}, logger)
}

// NewAttachmentParser builds a file parser that describes images when
// vision is configured. maxChars 0 keeps full text.
func NewAttachmentParser(cfg *config.Config, maxChars int, logger *zap.Logger) *attachments.Parser {
	p := attachments.NewParser(maxChars)
	if d := NewImageDescriber(cfg.Tools.Vision, cfg.LLM, logger); d != nil {
		p = p.WithDescriber(d, cfg.Tools.Vision.Prompt, cfg.Tools.Vision.MaxBytes)
	}
	return p
}

// NewToolSet builds the domain tool adapters from configuration.
func NewToolSet(cfg config.ToolsConfig, fetcher web_fetch.WebFetcher) ToolSet {
	return ToolSet{
		Finance:   finance.NewClient(cfg.Finance, cfg.Timeout),
		Weather:   weather.NewClient(cfg.Weather, cfg.Timeout),
		Transport: transport.NewClient(cfg.Transport, cfg.Timeout),
		Clock:     worldclock.NewClient(cfg.Time),
		Pages:     fetcher,
	}
}

// NewServices wires every collaborator. A missing web search key only
// disables the web fallback.
func NewServices(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	llm, err := NewLLMProvider(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	cache, err := repository.NewCache(ctx, cfg.Cache, cfg.Storage.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	store, err := NewKnowledgeStore(cfg.Knowledge, llm, logger)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	fetcher, err := web_fetch.NewWebFetcher(cfg.Tools.WebFetch, 0)
	if err != nil {
		_ = cache.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create web fetcher: %w", err)
	}

	var web WebSearch
	searcher, err := web_search.NewWebSearcher(cfg.Tools.WebSearch)
	switch {
	case err == nil:
		web = web_search.NewService(searcher, cfg.Tools.WebSearch.Provider)
	case errors.Is(err, web_search.ErrNotConfigured):
		logger.Warn("web search disabled", zap.Error(err))
	default:
		_ = cache.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create web search: %w", err)
	}

	features := NewFeatures()
	parser := NewAttachmentParser(cfg, attachmentMaxChars, logger)
	o := NewOrchestrator(Components{
		Analyzer:    NewQueryAnalyzer(llm, logger),
		Normalizer:  NewLocationNormalizer(),
		FastPath:    NewFastPathDetector(),
		Router:      NewSourceRouter(llm, cfg.LLM.Temperature, logger),
		Features:    features,
		Executor:    NewToolExecutor(NewToolSet(cfg.Tools, fetcher), repository.NewToolCache(cache), features, cfg.Tools.Timeout, cfg.Cache, tel, logger),
		Aggregator:  NewContextAggregator(web, cfg.Engine, tel, logger),
		Retriever:   store,
		Attachments: parser,
		Synthesizer: NewLLMSynthesizer(llm, repository.NewAnswerCache(cache, cfg.Cache.AnswerTTL), logger),
		Telemetry:   tel,
	}, cfg.Engine, logger)

	return &Services{
		Orchestrator: o,
		LLM:          llm,
		Cache:        cache,
		Knowledge:    store,
		Fetcher:      fetcher,
		Attachments:  parser,
		IngestParser: NewAttachmentParser(cfg, 0, logger),
		Telemetry:    tel,
	}, nil
}

// Close releases the cache connection and the index.
func (s *Services) Close() error {
	var errs []error
	if s.Cache != nil {
		errs = append(errs, s.Cache.Close())
	}
	if s.Knowledge != nil {
		errs = append(errs, s.Knowledge.Close())
	}
	return errors.Join(errs...)
}
