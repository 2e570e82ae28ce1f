// Package server exposes the placement engine over HTTP. Failures are
// reported as RFC 9457 problem+json; successful responses never include
// an item's correct answer.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flightpath/internal/app"
	"flightpath/internal/config"
)

// Pinger reports storage health for the liveness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes placement requests to the application layer.
type Server struct {
	cfg    *config.Config
	start  *app.StartPlacementTest
	submit *app.SubmitAnswer
	pinger Pinger
	logger *zap.Logger
	http   *http.Server
}

// New builds the server and its routes under the configured API prefix.
func New(cfg *config.Config, start *app.StartPlacementTest, submit *app.SubmitAnswer, pinger Pinger, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		start:  start,
		submit: submit,
		pinger: pinger,
		logger: logger,
	}

	prefix := strings.TrimSuffix(cfg.HTTP.APIPrefix, "/")
	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("POST %s/placement/{assigned_id}/start", prefix), s.handleStart)
	mux.HandleFunc(fmt.Sprintf("POST %s/placement/{session_id}/answer", prefix), s.handleAnswer)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.http = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is cancelled, then drains in-flight requests
// within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening",
			zap.String("addr", s.http.Addr),
			zap.String("api_prefix", s.cfg.HTTP.APIPrefix))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		s.logger.Info("shutting down http server")
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
