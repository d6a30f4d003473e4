package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finvect/finrag/agent"
	"github.com/finvect/finrag/config"
	"github.com/finvect/finrag/llm"
	"github.com/finvect/finrag/store"
	"github.com/finvect/finrag/types"
)

// Asker answers one question. Implemented by agent.Agent.
type Asker interface {
	AskWith(ctx context.Context, question string, opts agent.AskOptions) (types.AnswerResult, error)
}

// AskRequest is the body of POST /ask. RetrievalSize and MinScore
// override the configured defaults for this question only.
type AskRequest struct {
	Question      string  `json:"question"`
	Company       string  `json:"company,omitempty"`
	RetrievalSize int     `json:"retrieval_size,omitempty"`
	MinScore      float64 `json:"min_score,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is one dependency's health.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Handler serves the question-answering API.
type Handler struct {
	asker    Asker
	pinger   store.Pinger
	provider llm.Provider
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(asker Asker, pinger store.Pinger, provider llm.Provider, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		asker:    asker,
		pinger:   pinger,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// HandleAsk answers POST /ask.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if DecodeJSONBody(w, r, &req, h.logger) != nil {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		WriteError(w, r, types.NewError(types.ErrMalformedQuery, "question must not be empty").
			WithHTTPStatus(http.StatusBadRequest), h.logger)
		return
	}
	if req.RetrievalSize < 0 || req.RetrievalSize > store.MaxQuerySize {
		WriteError(w, r, types.NewError(types.ErrMalformedQuery, "retrieval_size out of range").
			WithHTTPStatus(http.StatusBadRequest), h.logger)
		return
	}

	result, err := h.asker.AskWith(r.Context(), req.Question, agent.AskOptions{
		RetrievalSize: req.RetrievalSize,
		MinScore:      req.MinScore,
		Company:       req.Company,
	})
	if err != nil {
		apiErr, ok := err.(*types.Error)
		if !ok {
			apiErr = types.NewError(types.ErrInternal, "ask failed").WithCause(err)
		}
		WriteError(w, r, apiErr, h.logger)
		return
	}

	WriteSuccess(w, r, result)
}

// HandleHealth answers GET /health: healthy when both the document
// store and the model backend respond, degraded when only one does.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Checks: make(map[string]CheckResult)}
	failures := 0

	start := time.Now()
	if err := h.pinger.Ping(ctx); err != nil {
		resp.Checks["document_store"] = CheckResult{Status: "fail", Message: err.Error()}
		failures++
	} else {
		resp.Checks["document_store"] = CheckResult{Status: "pass", Latency: time.Since(start).String()}
	}

	status, err := h.provider.HealthCheck(ctx)
	switch {
	case err != nil:
		resp.Checks["model_backend"] = CheckResult{Status: "fail", Message: err.Error()}
		failures++
	case !status.Healthy:
		resp.Checks["model_backend"] = CheckResult{Status: "fail", Latency: status.Latency.String()}
		failures++
	default:
		resp.Checks["model_backend"] = CheckResult{Status: "pass", Latency: status.Latency.String()}
	}

	switch failures {
	case 0:
		resp.Status = "healthy"
		WriteJSON(w, http.StatusOK, resp)
	case len(resp.Checks):
		resp.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, resp)
	default:
		resp.Status = "degraded"
		WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleConfig answers GET /config with the resolved configuration,
// credentials stripped.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	sanitized := *h.cfg
	if sanitized.LLM.APIKey != "" {
		sanitized.LLM.APIKey = "[redacted]"
	}
	if sanitized.Cache.Password != "" {
		sanitized.Cache.Password = "[redacted]"
	}
	WriteSuccess(w, r, sanitized)
}
