package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/finvect/finrag/internal/metrics"
)

// NewRouter wires the handlers behind the request-ID and observability
// middleware. collector may be nil.
func NewRouter(h *Handler, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", h.HandleAsk)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /config", h.HandleConfig)

	return withRequestID(withObservability(logger, collector, mux))
}
