package llm

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finvect/finrag/types"
)

// flakyProvider fails a fixed number of times before succeeding.
type flakyProvider struct {
	failures int
	err      error
	calls    int
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (f *flakyProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &CompletionResponse{Text: "ok"}, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		RetryableOnly: true,
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	inner := &flakyProvider{
		failures: 2,
		err:      types.NewError(types.ErrBackendError, "boom").WithRetryable(true),
	}
	p := NewRetryableProvider(inner, fastRetryConfig(), zap.NewNop())

	resp, err := p.Complete(context.Background(), &CompletionRequest{Model: "m", Prompt: "q"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q", resp.Text)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	inner := &flakyProvider{
		failures: 10,
		err:      types.NewError(types.ErrBackendError, "bad request"),
	}
	p := NewRetryableProvider(inner, fastRetryConfig(), zap.NewNop())

	_, err := p.Complete(context.Background(), &CompletionRequest{Model: "m", Prompt: "q"})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 for non-retryable error", inner.calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &flakyProvider{
		failures: 10,
		err:      types.NewError(types.ErrBackendTimeout, "slow").WithRetryable(true),
	}
	cfg := fastRetryConfig()
	p := NewRetryableProvider(inner, cfg, zap.NewNop())

	_, err := p.Complete(context.Background(), &CompletionRequest{Model: "m", Prompt: "q"})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != cfg.MaxRetries+1 {
		t.Errorf("calls = %d, want %d", inner.calls, cfg.MaxRetries+1)
	}
	if code := types.CodeOf(err); code != types.ErrBackendTimeout {
		t.Errorf("code = %s, want wrapped BACKEND_TIMEOUT", code)
	}
}

func TestRetryHonoursContextCancellation(t *testing.T) {
	inner := &flakyProvider{
		failures: 10,
		err:      types.NewError(types.ErrBackendError, "boom").WithRetryable(true),
	}
	cfg := fastRetryConfig()
	cfg.InitialDelay = time.Second
	p := NewRetryableProvider(inner, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, &CompletionRequest{Model: "m", Prompt: "q"})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 before cancellation", inner.calls)
	}
}
