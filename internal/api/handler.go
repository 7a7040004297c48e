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

	custom_errors "portfolio-sync/internal/errors"
	"portfolio-sync/internal/model"
	"portfolio-sync/internal/syncer"
)

// SecretHeader carries the shared admin secret.
const SecretHeader = "X-Admin-Secret"

// Runner triggers an immediate sync.
type Runner interface {
	RunNow(ctx context.Context) (model.SyncResult, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	configs syncer.ConfigStore
	runner  Runner
	logger  *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(configs syncer.ConfigStore, runner Runner, adminSecret string, logger *slog.Logger) http.Handler {
	h := &Handler{
		configs: configs,
		runner:  runner,
		logger:  logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1/sync", func(r chi.Router) {
		r.Use(requireSecret(adminSecret))
		r.Get("/config", h.getConfig)
		r.Put("/config", h.updateConfig)
		r.Post("/run", h.runSync)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getConfig returns the sync configuration.
// GET /v1/sync/config
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.configs.EnsureExists(r.Context()); err != nil {
		h.logger.Error("Failed to ensure sync config", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	cfg, err := h.configs.Get(r.Context())
	if err != nil {
		h.logger.Error("Failed to get sync config", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, cfg)
}

// updateConfig applies a partial update to the sync configuration.
// PUT /v1/sync/config
func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var patch model.SyncConfigPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.configs.Upsert(r.Context(), patch)
	if err != nil {
		h.logger.Error("Failed to update sync config", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Sync config updated", "enabled", cfg.Enabled, "interval_minutes", cfg.IntervalMinutes)
	respondWithJSON(w, http.StatusOK, cfg)
}

// runSync triggers an immediate sync and returns its counters.
// POST /v1/sync/run
func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunNow(r.Context())

	var fetchErr *custom_errors.FetchError
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, result)
	case errors.Is(err, custom_errors.ErrSyncInProgress):
		respondWithError(w, http.StatusConflict, "A sync is already running")
	case errors.Is(err, custom_errors.ErrSyncDisabled):
		respondWithError(w, http.StatusConflict, "Repository sync is disabled")
	case errors.Is(err, custom_errors.ErrNoUsername):
		respondWithError(w, http.StatusBadRequest, "No GitHub username configured")
	case errors.As(err, &fetchErr):
		h.logger.Warn("Manual sync could not list repositories", "status", fetchErr.StatusCode, "error", err)
		respondWithError(w, http.StatusBadGateway, "Failed to list GitHub repositories")
	default:
		h.logger.Error("Manual sync failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
