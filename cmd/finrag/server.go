package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	finrag "github.com/finvect/finrag"
	"github.com/finvect/finrag/api"
)

// Server runs the public HTTP API and the Prometheus scrape endpoint
// on separate listeners.
type Server struct {
	sys        *finrag.System
	logger     *zap.Logger
	httpServer *http.Server
	metrics    *http.Server
}

func NewServer(sys *finrag.System, logger *zap.Logger) *Server {
	return &Server{sys: sys, logger: logger}
}

func (s *Server) Start() error {
	cfg := s.sys.Config

	handler := api.NewHandler(s.sys.Agent, s.sys.Store, s.sys.Provider, cfg, s.logger)
	router := api.NewRouter(handler, s.sys.Metrics, s.logger)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		s.logger.Info("HTTP server listening", zap.Int("port", cfg.Server.HTTPPort))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		s.metrics = &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
		}
		go func() {
			s.logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
			if err := s.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	return nil
}

// Shutdown drains in-flight requests before closing the listeners.
func (s *Server) Shutdown() {
	timeout := s.sys.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down servers")
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP server shutdown", zap.Error(err))
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.logger.Warn("Metrics server shutdown", zap.Error(err))
		}
	}
}
