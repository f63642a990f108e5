// Package http exposes the TTS service over HTTP using huma.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekisa-team/melo-api/internal/metrics"
	"github.com/ekisa-team/melo-api/internal/service"
)

const (
	apiTitle   = "melo-api"
	apiVersion = "1.0.0"

	readHeaderTimeout = 10 * time.Second
)

// Server is the HTTP front end of the TTS service.
type Server struct {
	api huma.API
	mux *http.ServeMux
	srv *http.Server
}

// New builds a server listening on port with every route registered.
func New(port int, tts *service.TTS, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig(apiTitle, apiVersion))

	Register(api, tts)
	mux.Handle("GET /metrics", metrics.Handler(reg))

	return &Server{
		api: api,
		mux: mux,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Register installs the middleware and operations on api.
func Register(api huma.API, tts *service.TTS) {
	api.UseMiddleware(requestLogger)

	RegisterHealth(api)
	NewTTSHandler(api, tts)
}

// API returns the underlying huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Handler returns the root handler, including /metrics.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) ListenAndServe() error {
	slog.Info("HTTP server listening", "addr", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
