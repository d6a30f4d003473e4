package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finvect/finrag/types"
)

func completionBody(text string) string {
	return `{"model":"test-model","choices":[{"text":"` + text + `"}],"usage":{"prompt_tokens":12,"completion_tokens":4}}`
}

func TestCompleteSendsOpenAIShape(t *testing.T) {
	var got openAICompletionRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("path = %q, want /v1/completions", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(completionBody("  The price rose.  ")))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, APIKey: "sk-test"}, zap.NewNop())
	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Model:        "test-model",
		Prompt:       "question",
		Temperature:  0.1,
		MaxNewTokens: 512,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Model != "test-model" || got.Prompt != "question" {
		t.Errorf("request = %+v", got)
	}
	if got.MaxTokens != 512 {
		t.Errorf("max_tokens = %d, want 512", got.MaxTokens)
	}
	if got.Stream {
		t.Error("stream should be false")
	}
	if resp.Text != "The price rose." {
		t.Errorf("Text = %q, want trimmed completion", resp.Text)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 4 {
		t.Errorf("usage = %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
}

func TestCompleteStatusMapping(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, types.ErrBackendRateLimited, true},
		{"gateway timeout", http.StatusGatewayTimeout, types.ErrBackendTimeout, true},
		{"request timeout", http.StatusRequestTimeout, types.ErrBackendTimeout, true},
		{"server error", http.StatusInternalServerError, types.ErrBackendError, true},
		{"bad request", http.StatusBadRequest, types.ErrBackendError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL}, zap.NewNop())
			_, err := p.Complete(context.Background(), &CompletionRequest{Model: "m", Prompt: "q"})
			if err == nil {
				t.Fatal("expected error")
			}
			if code := types.CodeOf(err); code != tc.wantCode {
				t.Errorf("code = %s, want %s", code, tc.wantCode)
			}
			if types.IsRetryable(err) != tc.retryable {
				t.Errorf("retryable = %v, want %v", types.IsRetryable(err), tc.retryable)
			}
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(completionBody("late")))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zap.NewNop())
	_, err := p.Complete(context.Background(), &CompletionRequest{Model: "m", Prompt: "q"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if code := types.CodeOf(err); code != types.ErrBackendTimeout {
		t.Errorf("code = %s, want BACKEND_TIMEOUT", code)
	}
	if !types.IsRetryable(err) {
		t.Error("timeout should be retryable")
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := p.Complete(context.Background(), &CompletionRequest{Model: "m", Prompt: "q"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if code := types.CodeOf(err); code != types.ErrBackendError {
		t.Errorf("code = %s, want BACKEND_ERROR", code)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %q, want /v1/models", r.URL.Path)
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL}, zap.NewNop())
	status, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !status.Healthy {
		t.Error("expected healthy")
	}
	if status.Latency <= 0 {
		t.Error("latency not measured")
	}
}

func TestHealthCheckUnreachable(t *testing.T) {
	p := NewHTTPProvider(HTTPConfig{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond}, zap.NewNop())
	status, err := p.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if status == nil || status.Healthy {
		t.Error("expected unhealthy status")
	}
}
