// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	custom_errors "commit-ingester/internal/errors"
	"commit-ingester/internal/model"
)

// CommitReader is the read side of the store the API needs.
type CommitReader interface {
	GetCommit(ctx context.Context, sha string) (*model.CommitRecord, error)
	Ping(ctx context.Context) error
}

// Handler is the container for API dependencies.
type Handler struct {
	db     CommitReader
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
// metricsHandler may be nil, in which case /metrics is not mounted.
func NewRouter(db CommitReader, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/commits/{sha}", h.getCommit)
	})

	return r
}

// healthCheck reports whether the store is reachable.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getCommit returns one stored commit record.
// GET /v1/commits/{sha}
func (h *Handler) getCommit(w http.ResponseWriter, r *http.Request) {
	sha := chi.URLParam(r, "sha")

	rec, err := h.db.GetCommit(r.Context(), sha)
	if err != nil {
		if errors.Is(err, custom_errors.ErrCommitNotFound) {
			respondWithError(w, http.StatusNotFound, "Commit not found")
			return
		}
		h.logger.Error("Failed to get commit", "sha", sha, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
