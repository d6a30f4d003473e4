// Package finrag answers questions about financial news articles with
// hybrid lexical+vector retrieval over Elasticsearch and a local
// language-model backend.
package finrag

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finvect/finrag/agent"
	"github.com/finvect/finrag/config"
	"github.com/finvect/finrag/ingest"
	"github.com/finvect/finrag/internal/cache"
	"github.com/finvect/finrag/internal/metrics"
	"github.com/finvect/finrag/llm"
	"github.com/finvect/finrag/llm/tokenizer"
	"github.com/finvect/finrag/retrieval"
	"github.com/finvect/finrag/store"
)

// Version information, injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// System bundles the wired components of one finrag instance.
type System struct {
	Config   *config.Config
	Store    *store.Client
	Agent    *agent.Agent
	Provider llm.Provider
	Indexer  *ingest.Indexer
	Metrics  *metrics.Collector

	rdb *redis.Client
}

// New wires a complete system from a resolved configuration. It does
// not contact the document store; call Start for that.
func New(cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	collector := metrics.NewCollector("finrag", reg, logger)

	esClient := store.NewClient(store.ClientOptions{
		Host:  cfg.Elasticsearch.Host,
		Index: cfg.Elasticsearch.Index,
	}, logger)

	provider := llm.NewRetryableProvider(
		llm.NewHTTPProvider(llm.HTTPConfig{
			BaseURL:           cfg.LLM.BaseURL,
			APIKey:            cfg.LLM.APIKey,
			Timeout:           cfg.Agent.Timeout,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		}, logger),
		llm.RetryConfig{
			MaxRetries:    cfg.LLM.MaxRetries,
			InitialDelay:  llm.DefaultRetryConfig().InitialDelay,
			MaxDelay:      llm.DefaultRetryConfig().MaxDelay,
			BackoffFactor: llm.DefaultRetryConfig().BackoffFactor,
			RetryableOnly: true,
		},
		logger)

	embedder := llm.NewEmbeddingClient(llm.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}, logger)

	var answerCache agent.AnswerCache
	var rdb *redis.Client
	if cfg.Cache.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		answerCache = cache.New(rdb, cfg.Cache.TTL, logger)
	}

	ag, err := agent.New(agent.Options{
		Config:   cfg,
		Searcher: retrieval.NewSearcher(esClient, logger).WithObserver(collector),
		Embedder: embedder,
		Provider: provider,
		Tok:      tokenizer.NewTiktokenTokenizer(""),
		Cache:    answerCache,
		Observer: collector,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &System{
		Config:   cfg,
		Store:    esClient,
		Agent:    ag,
		Provider: provider,
		Indexer:  ingest.NewIndexer(esClient, logger),
		Metrics:  collector,
		rdb:      rdb,
	}, nil
}

// Start waits for the document store and ensures the article index
// exists.
func (s *System) Start(ctx context.Context) error {
	if err := s.Store.WaitForConnection(ctx,
		s.Config.Elasticsearch.ConnectRetries,
		s.Config.Elasticsearch.ConnectRetryDelay); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	return s.Store.EnsureIndex(ctx)
}

// Close releases held connections.
func (s *System) Close() error {
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}
