package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/licitaware/procurement-match-backend/internal/domain/errors"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/config"
	"github.com/licitaware/procurement-match-backend/internal/service/jobs"
	"github.com/licitaware/procurement-match-backend/internal/service/matching"
)

// Engine is the slice of the matching engine the API triggers.
type Engine interface {
	SearchNewBids(ctx context.Context) (*matching.RunSummary, error)
	ReevaluateBids(ctx context.Context) (*matching.RunSummary, error)
}

// EngineFactory builds a run-scoped engine from request overrides.
type EngineFactory interface {
	New(overrides matching.Overrides) (Engine, error)
}

// FactoryAdapter narrows the concrete matching factory to the Engine
// interface the server depends on.
type FactoryAdapter struct {
	Factory *matching.Factory
}

func (a FactoryAdapter) New(overrides matching.Overrides) (Engine, error) {
	return a.Factory.New(overrides)
}

// Server is the thin HTTP trigger surface over the matching engine. Matching
// work always runs in the background; handlers only start jobs and report
// status.
type Server struct {
	cfg     *config.Config
	factory EngineFactory
	runner  *jobs.Runner
	metrics http.Handler
	logger  *slog.Logger
	http    *http.Server
}

func NewServer(cfg *config.Config, factory EngineFactory, runner *jobs.Runner, metrics http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		factory: factory,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/search-new-bids", s.handleSearchNewBids)
	mux.HandleFunc("POST /api/reevaluate-bids", s.handleReevaluateBids)
	mux.HandleFunc("GET /api/status", s.handleStatusAll)
	mux.HandleFunc("GET /api/status/{kind}", s.handleStatus)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.logRequests(mux)
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and waits for background runs.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return err
	}
	s.runner.Wait()
	return nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleSearchNewBids(w http.ResponseWriter, r *http.Request) {
	overrides, err := decodeOverrides(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	engine, err := s.factory.New(overrides)
	if err != nil {
		s.writeError(w, err)
		return
	}

	err = s.runner.Start(context.Background(), jobs.KindDailyBids, func(ctx context.Context) (string, error) {
		summary, err := engine.SearchNewBids(ctx)
		if err != nil {
			return "", err
		}
		return summary.Message, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job":    string(jobs.KindDailyBids),
	})
}

func (s *Server) handleReevaluateBids(w http.ResponseWriter, r *http.Request) {
	overrides, err := decodeOverrides(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Reevaluation wipes stale scores unless the caller says otherwise.
	if overrides.ClearMatches == nil {
		wipe := true
		overrides.ClearMatches = &wipe
	}

	engine, err := s.factory.New(overrides)
	if err != nil {
		s.writeError(w, err)
		return
	}

	err = s.runner.Start(context.Background(), jobs.KindReevaluate, func(ctx context.Context) (string, error) {
		summary, err := engine.ReevaluateBids(ctx)
		if err != nil {
			return "", err
		}
		return summary.Message, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job":    string(jobs.KindReevaluate),
	})
}

func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.StatusAll())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	kind := jobs.Kind(r.PathValue("kind"))
	switch kind {
	case jobs.KindDailyBids, jobs.KindReevaluate:
		s.writeJSON(w, http.StatusOK, s.runner.Status(kind))
	default:
		s.writeError(w, errors.NewNotFoundError(fmt.Sprintf("job %q", kind)))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.cfg.Version,
	})
}

func decodeOverrides(r *http.Request) (matching.Overrides, error) {
	var overrides matching.Overrides
	err := json.NewDecoder(r.Body).Decode(&overrides)
	if err != nil && !stderrors.Is(err, io.EOF) {
		return overrides, errors.NewValidationError("INVALID_BODY",
			"request body must be a JSON object of run overrides").WithCause(err)
	}
	return overrides, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		s.writeJSON(w, appErr.StatusCode, map[string]any{
			"error": map[string]string{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	s.logger.Error("unhandled error", "error", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": map[string]string{
			"code":    "INTERNAL_ERROR",
			"message": "internal server error",
		},
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}
