package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/finvect/finrag/types"
)

// Config is the complete finrag configuration. It is resolved once at
// startup and treated as read-only afterwards.
type Config struct {
	// Elasticsearch document store settings.
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch" env:"ELASTICSEARCH"`

	// LLM model backend settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Retrieval hybrid search settings.
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Agent workflow settings.
	Agent AgentConfig `yaml:"agent" env:"AGENT"`

	// Server HTTP front end settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Cache retrieval cache settings.
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Log logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ElasticsearchConfig configures the document store connection.
type ElasticsearchConfig struct {
	// Host is the base URL of the store, e.g. http://localhost:9200.
	Host string `yaml:"host" env:"HOST"`
	// Index is the index holding the articles.
	Index string `yaml:"index" env:"INDEX"`
	// ConnectRetries bounds the startup ping loop.
	ConnectRetries int `yaml:"connect_retries" env:"CONNECT_RETRIES"`
	// ConnectRetryDelay is the pause between startup pings.
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay" env:"CONNECT_RETRY_DELAY"`
}

// LLMConfig configures the model backend.
type LLMConfig struct {
	Model       string  `yaml:"model" env:"MODEL"`
	BaseURL     string  `yaml:"base_url" env:"BASE_URL"`
	APIKey      string  `yaml:"api_key" env:"API_KEY"`
	// EmbeddingModel computes query embeddings; it must match the model
	// that produced the indexed article embeddings.
	EmbeddingModel string  `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	Temperature    float64 `yaml:"temperature" env:"TEMPERATURE"`
	// MaxNewTokens bounds the completion length.
	MaxNewTokens int `yaml:"max_new_tokens" env:"MAX_NEW_TOKENS"`
	// RequestsPerSecond bounds the client-side call rate (0 disables).
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// MaxRetries bounds retry attempts for retryable backend failures.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
}

// RetrievalConfig configures the hybrid scorer and the gate.
type RetrievalConfig struct {
	// Size is the number of articles returned per question.
	Size int `yaml:"size" env:"SIZE"`
	// MinScore is the fused-score threshold the gate applies.
	MinScore float64 `yaml:"min_score" env:"MIN_SCORE"`
	// TextWeight is the blend weight w given to the lexical leg, in [0,1].
	TextWeight float64 `yaml:"text_weight" env:"TEXT_WEIGHT"`
}

// AgentConfig configures the workflow engine.
type AgentConfig struct {
	Verbose bool `yaml:"verbose" env:"VERBOSE"`
	// Timeout bounds the model backend call within one Ask.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// CacheConfig configures the optional Redis retrieval cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in defaults, matching the original deployment
// shape: local Elasticsearch, a local OpenAI-compatible completion endpoint,
// five articles per question.
func Default() *Config {
	return &Config{
		Elasticsearch: ElasticsearchConfig{
			Host:              "http://localhost:9200",
			Index:             "finance_articles",
			ConnectRetries:    30,
			ConnectRetryDelay: 2 * time.Second,
		},
		LLM: LLMConfig{
			Model:          "mistralai/Mistral-7B-Instruct-v0.3",
			BaseURL:        "http://localhost:11434",
			EmbeddingModel: "all-minilm",
			Temperature:    0.1,
			MaxNewTokens:   512,
			MaxRetries:     2,
		},
		Retrieval: RetrievalConfig{
			Size:       5,
			MinScore:   0.5,
			TextWeight: 0.5,
		},
		Agent: AgentConfig{
			Verbose: false,
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the resolved configuration. Validation failures are the
// only errors allowed to abort startup.
func (c *Config) Validate() error {
	var errs []string

	if c.Elasticsearch.Host == "" {
		errs = append(errs, "elasticsearch host must not be empty")
	}
	if c.Elasticsearch.Index == "" {
		errs = append(errs, "elasticsearch index must not be empty")
	}
	if c.Retrieval.Size <= 0 {
		errs = append(errs, "retrieval size must be positive")
	}
	if c.Retrieval.TextWeight < 0 || c.Retrieval.TextWeight > 1 {
		errs = append(errs, "text_weight must be in [0, 1]")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be in [0, 2]")
	}
	if c.LLM.MaxNewTokens <= 0 {
		errs = append(errs, "max_new_tokens must be positive")
	}
	if c.Agent.Timeout <= 0 {
		errs = append(errs, "agent timeout must be positive")
	}

	if len(errs) > 0 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("config validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Option overrides a single field after file and environment resolution.
// Options are the highest-precedence layer.
type Option func(*Config)

// WithESHost overrides the document store host.
func WithESHost(host string) Option {
	return func(c *Config) { c.Elasticsearch.Host = host }
}

// WithIndex overrides the article index name.
func WithIndex(index string) Option {
	return func(c *Config) { c.Elasticsearch.Index = index }
}

// WithModel overrides the model identifier.
func WithModel(model string) Option {
	return func(c *Config) { c.LLM.Model = model }
}

// WithRetrievalSize overrides the number of articles retrieved per question.
func WithRetrievalSize(size int) Option {
	return func(c *Config) { c.Retrieval.Size = size }
}

// WithMinScore overrides the gate threshold.
func WithMinScore(score float64) Option {
	return func(c *Config) { c.Retrieval.MinScore = score }
}

// WithTextWeight overrides the lexical blend weight.
func WithTextWeight(w float64) Option {
	return func(c *Config) { c.Retrieval.TextWeight = w }
}

// WithTimeout overrides the per-ask model backend timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Agent.Timeout = d }
}

// WithVerbose overrides the verbose flag.
func WithVerbose(v bool) Option {
	return func(c *Config) { c.Agent.Verbose = v }
}
