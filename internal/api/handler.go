// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"repo-snapshot-sync/internal/model"
	"repo-snapshot-sync/internal/store"
)

// Runner performs one synchronization pass and returns the snapshots written.
type Runner interface {
	Run(ctx context.Context) ([]model.RepositorySnapshot, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	runner Runner
	reader store.Reader
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(runner Runner, reader store.Reader, logger *slog.Logger) http.Handler {
	h := &Handler{
		runner: runner,
		reader: reader,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Minute)) // a full account sync can be slow

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sync", h.triggerSync)
		r.Get("/snapshots/{id}", h.getSnapshot)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// triggerSync runs a full synchronization pass. This is the job's single
// failure boundary: any propagated failure becomes a 500 with the failure's
// message; success returns the snapshot sequence that was written.
// POST /v1/sync
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("Sync run failed", "error", err)
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "sync failed",
			"error":   err.Error(),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":      "sync completed",
		"repositories": snapshots,
	})
}

// getSnapshot returns one persisted snapshot by repository id.
// GET /v1/snapshots/{id}
func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid snapshot id")
		return
	}

	snap, err := h.reader.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			respondWithError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		h.logger.Error("Failed to get snapshot", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, snap)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"message": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
