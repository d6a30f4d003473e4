package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finvect/finrag/types"
)

// EmbeddingConfig configures an EmbeddingClient.
type EmbeddingConfig struct {
	// BaseURL is the backend base URL; the client posts to /v1/embeddings.
	BaseURL string
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// Model is the embedding model identifier.
	Model string
	// Timeout bounds each call. Defaults to 10s.
	Timeout time.Duration
}

// EmbeddingClient computes text embeddings over an OpenAI-compatible
// embeddings endpoint. Safe for concurrent use.
type EmbeddingClient struct {
	cfg    EmbeddingConfig
	client *http.Client
	logger *zap.Logger
}

// NewEmbeddingClient creates the client. It does not contact the backend.
func NewEmbeddingClient(cfg EmbeddingConfig, logger *zap.Logger) *EmbeddingClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "embeddings")),
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.cfg.Model, Input: text})
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "marshal embedding request").WithCause(err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "build embedding request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrBackendError, "embedding backend unreachable").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrBackendError, "read embedding response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.ErrBackendError,
			fmt.Sprintf("embedding backend error: status %d", resp.StatusCode)).
			WithHTTPStatus(resp.StatusCode).WithRetryable(resp.StatusCode >= 500)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, types.NewError(types.ErrBackendError, "decode embedding response").WithCause(err)
	}
	if len(parsed.Data) == 0 {
		return nil, types.NewError(types.ErrBackendError, "embedding backend returned no data")
	}
	return parsed.Data[0].Embedding, nil
}
