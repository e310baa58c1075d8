// -----------------------------------------------------------------------
// HTTP server - trigger endpoint and health check
// -----------------------------------------------------------------------

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
)

// Server manages the HTTP listener and routes
type Server struct {
	config  *common.Config
	logger  arbor.ILogger
	handler *JobHandler
	server  *http.Server
}

// New creates the HTTP server around the job handler
func New(config *common.Config, handler *JobHandler, logger arbor.ILogger) *Server {
	s := &Server{
		config:  config,
		logger:  logger,
		handler: handler,
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withLogging(s.setupRoutes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handler.HealthHandler)
	mux.HandleFunc("POST /jobs/issue", s.withSharedSecret(s.handler.EnqueueIssueHandler))
	return mux
}

// withSharedSecret rejects job submissions without the X-Worker-Secret
// header. An empty configured secret disables the check (development).
func (s *Server) withSharedSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := s.config.Server.SharedSecret
		if secret != "" && r.Header.Get("X-Worker-Secret") != secret {
			s.logger.Warn().
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Msg("Rejected request with bad worker secret")
			writeError(w, http.StatusUnauthorized, "invalid worker secret")
			return
		}
		next(w, r)
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(startTime)).
			Msg("Request handled")
	})
}

// Start blocks serving requests until Shutdown
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
