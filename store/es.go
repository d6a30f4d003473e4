package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finvect/finrag/types"
)

// esMapping is the index schema produced by the ingestion pipeline. The
// adapter creates it on demand so a fresh store can be used immediately.
const esMapping = `{
  "mappings": {
    "properties": {
      "title":        {"type": "text"},
      "description":  {"type": "text"},
      "content":      {"type": "text"},
      "full_text":    {"type": "text"},
      "url":          {"type": "keyword"},
      "published_at": {"type": "date"},
      "source":       {"type": "keyword"},
      "author":       {"type": "text"},
      "company":      {"type": "keyword"},
      "entities": {
        "type": "nested",
        "properties": {
          "text": {"type": "text"},
          "type": {"type": "keyword"}
        }
      },
      "embedding": {
        "type": "dense_vector",
        "dims": 384,
        "index": true,
        "similarity": "cosine"
      }
    }
  }
}`

// lexicalFields are the fields the text-match query spans.
var lexicalFields = []string{"title", "description", "content", "full_text"}

// Client is the Elasticsearch-compatible document store adapter. One Client
// holds one pooled HTTP connection and is safe for concurrent use.
type Client struct {
	baseURL string
	index   string
	http    *http.Client
	logger  *zap.Logger
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Host is the store base URL, e.g. http://localhost:9200.
	Host string
	// Index is the article index name.
	Index string
	// Timeout bounds each HTTP call. Defaults to 10s.
	Timeout time.Duration
}

// NewClient creates a store client. It does not contact the store; use Ping
// or WaitForConnection to verify reachability.
func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.Host, "/"),
		index:   opts.Index,
		http:    &http.Client{Timeout: opts.Timeout},
		logger:  logger.With(zap.String("component", "store")),
	}
}

// Ping checks store reachability.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return types.NewError(types.ErrStoreUnavailable, "build ping request").WithCause(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return types.NewError(types.ErrStoreUnavailable, "store unreachable").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.NewError(types.ErrStoreUnavailable,
			fmt.Sprintf("store ping returned status %d", resp.StatusCode)).WithRetryable(true)
	}
	return nil
}

// WaitForConnection pings the store until it answers or the retry budget is
// exhausted.
func (c *Client) WaitForConnection(ctx context.Context, retries int, delay time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if lastErr = c.Ping(ctx); lastErr == nil {
			c.logger.Info("connected to document store", zap.String("host", c.baseURL))
			return nil
		}
		c.logger.Debug("waiting for document store",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", retries))

		select {
		case <-ctx.Done():
			return types.NewError(types.ErrStoreUnavailable, "store connection wait cancelled").
				WithCause(ctx.Err())
		case <-time.After(delay):
		}
	}
	return types.NewError(types.ErrStoreUnavailable,
		fmt.Sprintf("store unreachable after %d attempts", retries)).WithCause(lastErr)
}

// EnsureIndex creates the article index with its mapping. Creating an index
// that already exists is not an error.
func (c *Client) EnsureIndex(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodPut, "/"+c.index, []byte(esMapping))
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		c.logger.Info("index created", zap.String("index", c.index))
		return nil
	}
	if status == http.StatusBadRequest && bytes.Contains(body, []byte("resource_already_exists_exception")) {
		return nil
	}
	return types.NewError(types.ErrStoreUnavailable,
		fmt.Sprintf("create index %s: status %d", c.index, status))
}

// LexicalQuery implements DocumentStore using a multi_match query, wrapped in
// a bool filter when a company is given.
func (c *Client) LexicalQuery(ctx context.Context, query, company string, size int) ([]Hit, error) {
	if err := validateQueryText(query); err != nil {
		return nil, err
	}
	if err := validateQuerySize(size); err != nil {
		return nil, err
	}

	match := map[string]any{
		"multi_match": map[string]any{
			"query":  query,
			"fields": lexicalFields,
		},
	}
	body := map[string]any{
		"size":  size,
		"query": withCompanyFilter(match, company),
	}
	return c.search(ctx, body, "lexical")
}

// VectorQuery implements DocumentStore using the store's native kNN search
// over the cosine-indexed embedding field.
func (c *Client) VectorQuery(ctx context.Context, vector []float64, company string, size int) ([]Hit, error) {
	if err := validateVector(vector); err != nil {
		return nil, err
	}
	if err := validateQuerySize(size); err != nil {
		return nil, err
	}

	knn := map[string]any{
		"field":          "embedding",
		"query_vector":   vector,
		"k":              size,
		"num_candidates": numCandidates(size),
	}
	if company != "" {
		knn["filter"] = termFilter(company)
	}
	body := map[string]any{
		"size": size,
		"knn":  knn,
	}
	return c.search(ctx, body, "vector")
}

// Upsert writes an article under a deterministic ID derived from its URL, so
// re-indexing the same article overwrites rather than duplicates.
func (c *Client) Upsert(ctx context.Context, article types.Article) error {
	if article.URL == "" {
		return types.NewError(types.ErrMalformedQuery, "article URL must not be empty").
			WithHTTPStatus(400)
	}

	payload, err := json.Marshal(article)
	if err != nil {
		return types.NewError(types.ErrInternal, "marshal article").WithCause(err)
	}

	id := DocumentID(article.URL)
	status, body, err := c.do(ctx, http.MethodPut, "/"+c.index+"/_doc/"+id, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return types.NewError(types.ErrStoreUnavailable,
			fmt.Sprintf("upsert returned status %d: %s", status, truncateBody(body)))
	}
	return nil
}

// DocumentID derives the stable store document ID for an article URL.
func DocumentID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

func (c *Client) search(ctx context.Context, body map[string]any, kind string) ([]Hit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "marshal query").WithCause(err)
	}

	start := time.Now()
	status, respBody, err := c.do(ctx, http.MethodPost, "/"+c.index+"/_search", payload)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
	case status >= 400 && status < 500:
		return nil, types.NewError(types.ErrMalformedQuery,
			fmt.Sprintf("%s query rejected: %s", kind, truncateBody(respBody))).
			WithHTTPStatus(status)
	default:
		return nil, types.NewError(types.ErrStoreUnavailable,
			fmt.Sprintf("%s query failed with status %d", kind, status)).WithRetryable(true)
	}

	var parsed esSearchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "decode search response").WithCause(err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{Article: h.Source, Score: h.Score})
	}

	c.logger.Debug("store query completed",
		zap.String("kind", kind),
		zap.Int("hits", len(hits)),
		zap.Duration("took", time.Since(start)))
	return hits, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, types.NewError(types.ErrInternal, "build store request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, types.NewError(types.ErrStoreUnavailable, "store unreachable").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, types.NewError(types.ErrStoreUnavailable, "read store response").WithCause(err)
	}
	return resp.StatusCode, body, nil
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64       `json:"_score"`
			Source types.Article `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func withCompanyFilter(query map[string]any, company string) map[string]any {
	if company == "" {
		return query
	}
	return map[string]any{
		"bool": map[string]any{
			"must":   query,
			"filter": termFilter(company),
		},
	}
}

func termFilter(company string) map[string]any {
	return map[string]any{"term": map[string]any{"company": company}}
}

func numCandidates(size int) int {
	if n := size * 4; n > 100 {
		return n
	}
	return 100
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
