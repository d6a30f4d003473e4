package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finvect/finrag/agent"
	"github.com/finvect/finrag/config"
	"github.com/finvect/finrag/llm"
	"github.com/finvect/finrag/types"
)

type fakeAsker struct {
	result types.AnswerResult
	err    error
	opts   agent.AskOptions
}

func (f *fakeAsker) AskWith(ctx context.Context, question string, opts agent.AskOptions) (types.AnswerResult, error) {
	f.opts = opts
	if f.err != nil {
		return types.AnswerResult{}, f.err
	}
	r := f.result
	r.Question = question
	return r, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeHealthProvider struct {
	healthy bool
	err     error
}

func (f *fakeHealthProvider) Name() string { return "fake" }

func (f *fakeHealthProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeHealthProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.HealthStatus{Healthy: f.healthy, Latency: time.Millisecond}, nil
}

func newTestRouter(asker *fakeAsker, pinger *fakePinger, provider *fakeHealthProvider) http.Handler {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-secret"
	h := NewHandler(asker, pinger, provider, cfg, zap.NewNop())
	return NewRouter(h, nil, zap.NewNop())
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope Response
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, envelope
}

func TestAskReturnsAnswer(t *testing.T) {
	asker := &fakeAsker{result: types.AnswerResult{
		Answer:        "Shares rose.",
		ArticlesFound: true,
		NumArticles:   2,
	}}
	router := newTestRouter(asker, &fakePinger{}, &fakeHealthProvider{healthy: true})

	rec, envelope := doRequest(t, router, http.MethodPost, "/ask",
		`{"question":"What happened to Acme?","retrieval_size":3,"min_score":0.4,"company":"Acme"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !envelope.Success {
		t.Fatal("expected success envelope")
	}
	if envelope.RequestID == "" {
		t.Error("request_id missing from envelope")
	}

	data, _ := json.Marshal(envelope.Data)
	var result types.AnswerResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Answer != "Shares rose." || !result.ArticlesFound {
		t.Errorf("result = %+v", result)
	}

	if asker.opts.RetrievalSize != 3 || asker.opts.MinScore != 0.4 || asker.opts.Company != "Acme" {
		t.Errorf("overrides not forwarded: %+v", asker.opts)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	router := newTestRouter(&fakeAsker{}, &fakePinger{}, &fakeHealthProvider{healthy: true})

	rec, envelope := doRequest(t, router, http.MethodPost, "/ask", `{"question":"  "}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if envelope.Success || envelope.Error == nil {
		t.Fatal("expected error envelope")
	}
	if envelope.Error.Code != string(types.ErrMalformedQuery) {
		t.Errorf("code = %s", envelope.Error.Code)
	}
}

func TestAskRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(&fakeAsker{}, &fakePinger{}, &fakeHealthProvider{healthy: true})

	rec, _ := doRequest(t, router, http.MethodPost, "/ask", `{"question":"q","bogus":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAskRejectsOversizedRetrievalSize(t *testing.T) {
	router := newTestRouter(&fakeAsker{}, &fakePinger{}, &fakeHealthProvider{healthy: true})

	rec, _ := doRequest(t, router, http.MethodPost, "/ask", `{"question":"q","retrieval_size":100000}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAskErrorMapsToStatus(t *testing.T) {
	asker := &fakeAsker{err: types.NewError(types.ErrStoreUnavailable, "store down").WithRetryable(true)}
	router := newTestRouter(asker, &fakePinger{}, &fakeHealthProvider{healthy: true})

	rec, envelope := doRequest(t, router, http.MethodPost, "/ask", `{"question":"q"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if envelope.Error == nil || !envelope.Error.Retryable {
		t.Error("expected retryable error info")
	}
}

func TestHealthHealthy(t *testing.T) {
	router := newTestRouter(&fakeAsker{}, &fakePinger{}, &fakeHealthProvider{healthy: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Checks["document_store"].Status != "pass" || resp.Checks["model_backend"].Status != "pass" {
		t.Errorf("checks = %+v", resp.Checks)
	}
}

func TestHealthDegraded(t *testing.T) {
	router := newTestRouter(&fakeAsker{}, &fakePinger{}, &fakeHealthProvider{err: fmt.Errorf("backend down")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, degraded should still serve 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestHealthUnhealthy(t *testing.T) {
	router := newTestRouter(&fakeAsker{},
		&fakePinger{err: fmt.Errorf("store down")},
		&fakeHealthProvider{err: fmt.Errorf("backend down")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestConfigRedactsSecrets(t *testing.T) {
	router := newTestRouter(&fakeAsker{}, &fakePinger{}, &fakeHealthProvider{healthy: true})

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "sk-secret") {
		t.Error("API key leaked into /config response")
	}
	if !strings.Contains(body, "[redacted]") {
		t.Error("expected redaction marker")
	}
	if !strings.Contains(body, "finance_articles") {
		t.Error("expected index name in config response")
	}
}

func TestRequestIDPropagates(t *testing.T) {
	router := newTestRouter(&fakeAsker{}, &fakePinger{}, &fakeHealthProvider{healthy: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
}
