package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (RAGROUTER_LLM_API_KEY).
const EnvPrefix = "RAGROUTER"

// Config holds all configuration for the query engine and its collaborators
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// RequestsPerSecond limits /api requests per client IP; 0 disables.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// LLMConfig describes the OpenAI-compatible chat endpoint used for
// classification, routing and synthesis.
type LLMConfig struct {
	Type              string        `mapstructure:"type"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	ChatModel         string        `mapstructure:"chat_model"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.BaseURL) == "" {
		return fmt.Errorf("llm.base_url required")
	}
	if strings.TrimSpace(l.ChatModel) == "" {
		return fmt.Errorf("llm.chat_model required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	return nil
}

// ToolsConfig groups the live-data tool settings
type ToolsConfig struct {
	Timeout   time.Duration   `mapstructure:"timeout"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Finance   FinanceConfig   `mapstructure:"finance"`
	Transport TransportConfig `mapstructure:"transport"`
	Time      TimeConfig      `mapstructure:"time"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	WebFetch  WebFetchConfig  `mapstructure:"web_fetch"`
	Vision    VisionConfig    `mapstructure:"vision"`
}

// WeatherConfig points at an Open-Meteo compatible forecast API
type WeatherConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ForecastURL string `mapstructure:"forecast_url"`
	GeocodeURL  string `mapstructure:"geocode_url"`
}

// FinanceConfig points at an Alpha Vantage compatible market data API
type FinanceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// TransportConfig points at the Google Directions API
type TransportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Region  string `mapstructure:"region"`
}

// VisionConfig describes attached images through an OpenAI-compatible chat
// endpoint. APIKey and BaseURL fall back to the llm section when empty.
type VisionConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Prompt    string        `mapstructure:"prompt"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// MaxBytes skips images larger than this.
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// TimeConfig holds the default zone for clock queries without a location
type TimeConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DefaultZone string `mapstructure:"default_zone"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider     string        `mapstructure:"provider"` // google, serper, brave
	GoogleAPIKey string        `mapstructure:"google_api_key"`
	GoogleCX     string        `mapstructure:"google_cx"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func (w WebSearchConfig) Validate() error {
	switch w.Provider {
	case "", "google", "serper", "brave":
	default:
		return fmt.Errorf("tools.web_search.provider %q not supported", w.Provider)
	}
	if w.MaxResults < 0 {
		return fmt.Errorf("tools.web_search.max_results cannot be negative")
	}
	return nil
}

// WebFetchConfig selects how pages are fetched for price extraction and
// HTML attachments.
type WebFetchConfig struct {
	Driver    string        `mapstructure:"driver"` // http, chromedp
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	WaitFor   string        `mapstructure:"wait_for"` // chromedp only
}

// CacheConfig controls the tool-result and answer caches
type CacheConfig struct {
	Type         string        `mapstructure:"type"` // redis, memory
	MaxEntries   int           `mapstructure:"max_entries"`
	FinanceTTL   time.Duration `mapstructure:"finance_ttl"`
	WeatherTTL   time.Duration `mapstructure:"weather_ttl"`
	TransportTTL time.Duration `mapstructure:"transport_ttl"`
	AnswerTTL    time.Duration `mapstructure:"answer_ttl"`
}

func (c CacheConfig) Validate() error {
	switch c.Type {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.type must be redis or memory, got %q", c.Type)
	}
	if c.FinanceTTL < 0 || c.WeatherTTL < 0 || c.TransportTTL < 0 || c.AnswerTTL < 0 {
		return fmt.Errorf("cache ttls cannot be negative")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// KnowledgeConfig controls the local knowledge base index
type KnowledgeConfig struct {
	IndexPath    string `mapstructure:"index_path"` // empty keeps the index in memory
	TopK         int    `mapstructure:"top_k"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	UseVectors   bool   `mapstructure:"use_vectors"`
}

// Normalize applies defaults for unset knowledge values.
func (k KnowledgeConfig) Normalize() KnowledgeConfig {
	if k.TopK <= 0 {
		k.TopK = 5
	}
	if k.ChunkSize <= 0 {
		k.ChunkSize = 1000
	}
	if k.ChunkOverlap < 0 || k.ChunkOverlap >= k.ChunkSize {
		k.ChunkOverlap = k.ChunkSize / 5
	}
	return k
}

// EngineConfig holds the orchestration thresholds
type EngineConfig struct {
	SufficiencyThreshold float64 `mapstructure:"sufficiency_threshold"`
	EvidenceLimit        int     `mapstructure:"evidence_limit"`
	KBMinDocs            int     `mapstructure:"kb_min_docs"`
	WebMaxResults        int     `mapstructure:"web_max_results"`
}

// Normalize applies defaults for unset engine values.
func (e EngineConfig) Normalize() EngineConfig {
	if e.EvidenceLimit <= 0 {
		e.EvidenceLimit = 10
	}
	if e.KBMinDocs <= 0 {
		e.KBMinDocs = 3
	}
	if e.WebMaxResults <= 0 {
		e.WebMaxResults = 5
	}
	return e
}

func (e EngineConfig) Validate() error {
	if e.SufficiencyThreshold < 0 || e.SufficiencyThreshold > 1 {
		return fmt.Errorf("engine.sufficiency_threshold must be within [0,1]")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.request_timeout", 90*time.Second)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.requests_per_second", 5.0)

	v.SetDefault("llm.type", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("llm.chat_model", "deepseek-chat")
	v.SetDefault("llm.embedding_model", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.requests_per_second", 5.0)

	v.SetDefault("tools.timeout", 15*time.Second)
	v.SetDefault("tools.weather.enabled", true)
	v.SetDefault("tools.weather.forecast_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("tools.weather.geocode_url", "https://geocoding-api.open-meteo.com/v1/search")
	v.SetDefault("tools.finance.enabled", true)
	v.SetDefault("tools.finance.api_key", "")
	v.SetDefault("tools.finance.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("tools.transport.enabled", true)
	v.SetDefault("tools.transport.api_key", "")
	v.SetDefault("tools.transport.base_url", "https://maps.googleapis.com/maps/api/directions/json")
	v.SetDefault("tools.transport.region", "hk")
	v.SetDefault("tools.time.enabled", true)
	v.SetDefault("tools.time.default_zone", "Asia/Hong_Kong")
	v.SetDefault("tools.vision.enabled", false)
	v.SetDefault("tools.vision.api_key", "")
	v.SetDefault("tools.vision.base_url", "")
	v.SetDefault("tools.vision.model", "gpt-4o-mini")
	v.SetDefault("tools.vision.prompt", "")
	v.SetDefault("tools.vision.max_tokens", 500)
	v.SetDefault("tools.vision.timeout", 30*time.Second)
	v.SetDefault("tools.vision.max_bytes", 10<<20)
	v.SetDefault("tools.web_search.provider", "google")
	v.SetDefault("tools.web_search.google_api_key", "")
	v.SetDefault("tools.web_search.google_cx", "")
	v.SetDefault("tools.web_search.brave_api_key", "")
	v.SetDefault("tools.web_search.serper_api_key", "")
	v.SetDefault("tools.web_search.max_results", 5)
	v.SetDefault("tools.web_search.timeout", 10*time.Second)
	v.SetDefault("tools.web_fetch.driver", "http")
	v.SetDefault("tools.web_fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("tools.web_fetch.timeout", 10*time.Second)

	v.SetDefault("cache.type", "redis")
	v.SetDefault("cache.max_entries", 2048)
	v.SetDefault("cache.finance_ttl", 300*time.Second)
	v.SetDefault("cache.weather_ttl", 600*time.Second)
	v.SetDefault("cache.transport_ttl", 900*time.Second)
	v.SetDefault("cache.answer_ttl", time.Hour)

	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)

	v.SetDefault("knowledge.index_path", "")
	v.SetDefault("knowledge.top_k", 5)
	v.SetDefault("knowledge.chunk_size", 1000)
	v.SetDefault("knowledge.chunk_overlap", 200)
	v.SetDefault("knowledge.use_vectors", false)

	v.SetDefault("engine.sufficiency_threshold", 0.5)
	v.SetDefault("engine.evidence_limit", 10)
	v.SetDefault("engine.kb_min_docs", 3)
	v.SetDefault("engine.web_max_results", 5)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// LoadConfig loads config from file, environment and defaults. A missing
// config file is not an error when path is empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Knowledge = cfg.Knowledge.Normalize()
	cfg.Engine = cfg.Engine.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section that carries constraints.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Tools.WebSearch.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if c.Cache.Type == "redis" {
		if err := c.Storage.Redis.Validate(); err != nil {
			return err
		}
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	return c.Telemetry.Validate()
}
