// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package status serves the optional HTTP listener next to a run: liveness,
// readiness, the current pipeline stage and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/kiosk/internal/health"
	"github.com/ManuGH/kiosk/internal/kiosk"
	xglog "github.com/ManuGH/kiosk/internal/log"
)

const (
	defaultRateLimit = 60
	shutdownTimeout  = 5 * time.Second
)

// Options configures the listener.
type Options struct {
	Listen string
	// RateLimit is the number of requests per minute and client IP.
	RateLimit   int
	Token       string
	Version     string
	ServiceName string
}

// Response is the body of GET /status.
type Response struct {
	Version string         `json:"version,omitempty"`
	Run     kiosk.Snapshot `json:"run"`
}

// Server is the status HTTP listener.
type Server struct {
	opts    Options
	handler http.Handler
	logger  zerolog.Logger
}

// New builds the router.
func New(opts Options, hm *health.Manager, tracker *kiosk.Tracker) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "kiosk"
	}
	s := &Server{opts: opts, logger: xglog.WithComponent("status")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracing(opts.ServiceName))
	r.Use(rateLimit(opts.RateLimit, time.Minute))

	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	r.With(requireToken(opts.Token)).Get("/status", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, Response{Version: opts.Version, Run: tracker.Snapshot()})
	})

	s.handler = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Str(xglog.FieldEvent, "status.encode_error").Msg("failed to encode status response")
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("status listener: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str(xglog.FieldEvent, "status.listening").
			Str("addr", ln.Addr().String()).
			Msg("status server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error().Err(err).Str(xglog.FieldEvent, "status.failed").Msg("status server failed")
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	s.logger.Info().Str(xglog.FieldEvent, "status.stopped").Msg("status server stopped")
	return err
}
