// Package httpapi is the HTTP boundary layer: routing, JSON encoding, CORS,
// and request logging around the entries service. All storage semantics live
// below it.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/akulikov/stashkeeper/internal/logging"
	"github.com/akulikov/stashkeeper/internal/server/entries"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type Server struct {
	address string
	logger  logging.Logger
	entries *entries.Service
}

func NewServer(address string, logger logging.Logger, es *entries.Service) *Server {
	return &Server{
		address: address,
		logger:  logger.With("module", "http_server"),
		entries: es,
	}
}

// Handler builds the full middleware/router chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/save", s.handleSave).Methods(http.MethodPost)
	r.HandleFunc("/api/list", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/object/{id}", s.handleObject).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)

	return cors.AllowAll().Handler(r)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
