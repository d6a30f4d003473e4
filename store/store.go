// Package store provides access to the article document store. The store is
// treated as a black box exposing two query primitives, a lexical text-match
// query and a vector-similarity query, plus document upsert.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/finvect/finrag/types"
)

// MaxQuerySize bounds the size parameter accepted by queries. Larger values
// are rejected as malformed rather than silently clamped.
const MaxQuerySize = 1000

// Hit is one scored document returned by a query leg.
type Hit struct {
	Article types.Article
	Score   float64
}

// DocumentStore is the capability surface the retrieval layer depends on.
// Implementations must surface store-unreachable and malformed-query errors
// to the caller rather than swallowing them.
type DocumentStore interface {
	// LexicalQuery runs a BM25-style multi-field match over title,
	// description and full text. company, when non-empty, is applied as an
	// exact-match filter before ranking.
	LexicalQuery(ctx context.Context, query, company string, size int) ([]Hit, error)

	// VectorQuery runs a cosine-similarity query against the stored
	// embeddings, with the same optional company filter.
	VectorQuery(ctx context.Context, vector []float64, company string, size int) ([]Hit, error)

	// Upsert writes an article, keyed by its URL.
	Upsert(ctx context.Context, article types.Article) error
}

// Pinger is an optional interface for stores with a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func validateQuerySize(size int) error {
	if size <= 0 || size > MaxQuerySize {
		return types.NewError(types.ErrMalformedQuery,
			fmt.Sprintf("query size must be in [1, %d], got %d", MaxQuerySize, size)).
			WithHTTPStatus(400)
	}
	return nil
}

func validateVector(vector []float64) error {
	if len(vector) != types.EmbeddingDim {
		return types.NewError(types.ErrMalformedQuery,
			fmt.Sprintf("query vector must have dimension %d, got %d", types.EmbeddingDim, len(vector))).
			WithHTTPStatus(400)
	}
	return nil
}

func validateQueryText(query string) error {
	if strings.TrimSpace(query) == "" {
		return types.NewError(types.ErrMalformedQuery, "query text must not be empty").
			WithHTTPStatus(400)
	}
	return nil
}
