// Package http hosts the read-only status server: chi routing, cors and JSON envelopes
package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"time"

	"mailsweep/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// shutdownGrace bounds how long in-flight status requests may take once the run ends
const shutdownGrace = 3 * time.Second

// Server is a thin wrapper over chi + stdlib http.Server
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *stdhttp.Server
}

// NewServer creates a server bound to addr with request ids, panic recovery and access logs.
// opts receive the *chi.Mux so callers can add middleware before routes mount
func NewServer(addr string, opts ...func(*chi.Mux)) *Server {
	m := chi.NewRouter()
	m.Use(chimw.RequestID, RecoverJSON, AccessLog)
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr: addr,
		mux:  m,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// WithCORS allows cross-origin GETs from the given origins (dashboards polling /status)
func WithCORS(origins []string) func(*chi.Mux) {
	return func(m *chi.Mux) {
		if len(origins) == 0 {
			return
		}
		m.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
}

// Router returns a Router facade over the internal chi mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Handler exposes the mux, mostly for tests
func (s *Server) Handler() stdhttp.Handler { return s.mux }

// Addr returns the configured listening address
func (s *Server) Addr() string { return s.addr }

// Run listens until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs on an existing listener until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.Named("http")
	log.Info().Str("addr", ln.Addr().String()).Msg("status server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.srv.Shutdown(shCtx); err != nil {
			return err
		}
		log.Info().Msg("status server stopped")
		return nil
	}
}
