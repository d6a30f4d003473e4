// Package llm provides the model backend client: a small completion
// capability interface, an OpenAI-compatible HTTP implementation with
// bearer-token auth, and a backoff retry wrapper.
package llm

import (
	"context"
	"time"
)

// CompletionRequest is one synchronous text completion call.
type CompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	// MaxNewTokens bounds the generated completion length.
	MaxNewTokens int `json:"max_tokens"`
}

// CompletionResponse is the backend's answer.
type CompletionResponse struct {
	Text             string `json:"text"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// HealthStatus reports backend reachability.
type HealthStatus struct {
	Healthy bool
	Latency time.Duration
}

// Provider is the model backend capability the answer generator depends on.
// Implementations must be safe for concurrent use; the agent holds one
// Provider per instance.
type Provider interface {
	// Complete performs a synchronous completion. Cancellation and
	// deadlines arrive via ctx.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// HealthCheck performs a lightweight reachability probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's identifier.
	Name() string
}
