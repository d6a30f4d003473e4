package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/finvect/finrag/types"
)

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	// Name identifies the provider in logs. Defaults to "openai-compat".
	Name string

	// BaseURL is the backend base URL, e.g. http://localhost:11434.
	BaseURL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Timeout bounds each HTTP call. Defaults to 30s; callers usually pass
	// the agent's configured per-ask timeout.
	Timeout time.Duration

	// EndpointPath is the completions endpoint. Defaults to "/v1/completions".
	EndpointPath string

	// RequestsPerSecond bounds the client-side call rate. 0 disables
	// limiting.
	RequestsPerSecond float64
}

// HTTPProvider talks to an OpenAI-compatible completions endpoint. One
// provider holds one pooled HTTP client and is safe for concurrent use.
type HTTPProvider struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPProvider creates the provider. It does not contact the backend.
func NewHTTPProvider(cfg HTTPConfig, logger *zap.Logger) *HTTPProvider {
	if cfg.Name == "" {
		cfg.Name = "openai-compat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm"), zap.String("provider", cfg.Name)),
	}
}

// Name returns the provider identifier.
func (p *HTTPProvider) Name() string { return p.cfg.Name }

// openAICompletionRequest is the wire shape of the completions call.
type openAICompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
}

type openAICompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete implements Provider.
func (p *HTTPProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrBackendTimeout, "rate limit wait cancelled").WithCause(err)
		}
	}

	body, err := json.Marshal(openAICompletionRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxNewTokens,
		Stream:      false,
	})
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "marshal completion request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.cfg.EndpointPath), bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "build completion request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, types.NewError(types.ErrBackendTimeout, "model backend timed out").
				WithCause(err).WithRetryable(true)
		}
		return nil, types.NewError(types.ErrBackendError, "model backend unreachable").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrBackendError, "read backend response").WithCause(err)
	}

	if err := p.mapStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var parsed openAICompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, types.NewError(types.ErrBackendError, "decode backend response").WithCause(err)
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrBackendError, "backend returned no choices")
	}

	p.logger.Debug("completion finished",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
		zap.Int("completion_tokens", parsed.Usage.CompletionTokens),
		zap.Duration("took", time.Since(start)))

	return &CompletionResponse{
		Text:             strings.TrimSpace(parsed.Choices[0].Text),
		Model:            parsed.Model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// HealthCheck implements Provider with a GET to the models endpoint.
func (p *HTTPProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/models"), nil)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "build health request").WithCause(err)
	}
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("%s health check: status %d", p.cfg.Name, resp.StatusCode)
	}
	return &HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *HTTPProvider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

// mapStatus converts non-2xx backend statuses into the error taxonomy.
func (p *HTTPProvider) mapStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrBackendRateLimited, "model backend rate limited").
			WithHTTPStatus(status).WithRetryable(true)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.NewError(types.ErrBackendTimeout, "model backend timed out").
			WithHTTPStatus(status).WithRetryable(true)
	case status >= 500:
		return types.NewError(types.ErrBackendError,
			fmt.Sprintf("model backend error: status %d", status)).
			WithHTTPStatus(status).WithRetryable(true)
	default:
		return types.NewError(types.ErrBackendError,
			fmt.Sprintf("model backend rejected request: status %d body %s", status, truncate(body))).
			WithHTTPStatus(status)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
