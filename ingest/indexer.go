package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/finvect/finrag/store"
	"github.com/finvect/finrag/types"
)

// Indexer writes article batches into a document store.
type Indexer struct {
	store  store.DocumentStore
	logger *zap.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(docStore store.DocumentStore, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		store:  docStore,
		logger: logger.With(zap.String("component", "ingest")),
	}
}

// Result summarizes one indexing run.
type Result struct {
	Indexed int
	Failed  int
}

// IndexArticles upserts every article, keyed by URL. Per-article
// failures are logged and counted; only a cancelled context aborts the
// run early.
func (ix *Indexer) IndexArticles(ctx context.Context, articles []types.Article) (Result, error) {
	var res Result
	for i, a := range articles {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("indexing aborted after %d articles: %w", res.Indexed, err)
		}
		if err := ix.store.Upsert(ctx, a); err != nil {
			res.Failed++
			ix.logger.Warn("article upsert failed",
				zap.Int("position", i),
				zap.String("url", a.URL),
				zap.Error(err))
			continue
		}
		res.Indexed++
	}

	ix.logger.Info("indexing finished",
		zap.Int("indexed", res.Indexed),
		zap.Int("failed", res.Failed))
	return res, nil
}

// IndexFile loads a JSONL article file and indexes its contents.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (Result, error) {
	articles, err := LoadArticles(path)
	if err != nil {
		return Result{}, err
	}
	return ix.IndexArticles(ctx, articles)
}
