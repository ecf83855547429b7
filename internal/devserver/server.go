// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// ServerConfig is the configuration for constructing a [Server].
type ServerConfig struct {
	// Addr is the listen address, such as "127.0.0.1:8080". Required.
	Addr string

	// OutputDir is the build output directory to serve files from.
	// Required.
	OutputDir string

	// Metrics, when set, is exposed at /metrics.
	Metrics *Metrics

	Logger zerolog.Logger
}

// Server serves the build output directory over HTTP for local
// development, along with a health endpoint and optional build metrics.
type Server struct {
	addr    string
	logger  zerolog.Logger
	handler http.Handler
}

// NewServer constructs a [Server] from the given configuration.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Addr == "" {
		return nil, errors.New("server requires a listen address")
	}
	if config.OutputDir == "" {
		return nil, errors.New("server requires an output directory")
	}

	logger := config.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	if config.Metrics != nil {
		r.Handle("/metrics", config.Metrics.Handler())
	}
	r.Handle("/*", http.FileServer(http.Dir(config.OutputDir)))

	return &Server{
		addr:    config.Addr,
		logger:  logger,
		handler: r,
	}, nil
}

// Handler returns the server's HTTP handler, for tests and for embedding
// in another server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on the configured address until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.handler,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("dev server listening")
		errC <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errC:
		return err
	}
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			logger.Debug().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
