// Package handler implements the admin API's HTTP handlers: health checks
// and the ambiguity review queue operators use to resolve or dismiss
// fuzzy-match candidates the pipeline couldn't confidently auto-link.
package handler

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchsync/pitchsync/internal/api/respond"
	"github.com/pitchsync/pitchsync/internal/cache"
	"github.com/pitchsync/pitchsync/internal/config"
)

// Handler holds the dependencies shared by all admin API routes.
type Handler struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
	cfg   *config.Config
}

// New constructs a Handler.
func New(pool *pgxpool.Pool, appCache *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{pool: pool, cache: appCache, cfg: cfg}
}

// Root responds with a minimal service identification payload.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{
		"service": "pitchsync-admin",
		"status":  "ok",
	})
}

// HealthCheck is a liveness probe — it never touches the database.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthCheckDB is a readiness probe that verifies the pool can reach Postgres.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Ping(r.Context()); err != nil {
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "DB_UNREACHABLE", "database ping failed", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"status": "ok"})
}
