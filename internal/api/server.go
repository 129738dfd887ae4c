// Package api exposes the HTTP trigger surface for the mirror service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tgmirror/internal/mirror"
)

// Runner starts a sync pass and yields its progress stream.
type Runner interface {
	Run(ctx context.Context, full bool) <-chan mirror.Event
}

// Searcher finds mirrored messages by text.
type Searcher interface {
	Find(ctx context.Context, text string) ([]mirror.SearchResult, error)
}

// Server wires HTTP handlers to the sync pipeline. Sync passes are
// serialized: the cursor is a read-modify-write shared between passes, so
// a second trigger while one runs is rejected.
type Server struct {
	router   chi.Router
	runner   Runner
	searcher Searcher
	logger   *zap.Logger
	syncing  atomic.Bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, searcher Searcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:   runner,
		searcher: searcher,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(recoverMiddleware(logger))
	r.Use(loggingMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sync", s.runSync(false))
		r.Post("/sync/full", s.runSync(true))
		r.Get("/search", s.search)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks until ctx is cancelled, then shuts the listener down.
func (s *Server) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// runSync streams progress events as NDJSON until the pass finishes. A
// fatal abort is reported as the final event's error field.
func (s *Server) runSync(full bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.syncing.CompareAndSwap(false, true) {
			http.Error(w, "a sync pass is already running", http.StatusConflict)
			return
		}
		defer s.syncing.Store(false)

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)
		for evt := range s.runner.Run(r.Context(), full) {
			if err := enc.Encode(evt); err != nil {
				s.logger.Warn("progress stream write failed", zap.Error(err))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q parameter is required", http.StatusBadRequest)
		return
	}
	results, err := s.searcher.Find(r.Context(), query)
	if err != nil {
		s.logger.Error("search failed", zap.String("q", query), zap.Error(err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		s.logger.Warn("search response write failed", zap.Error(err))
	}
}
