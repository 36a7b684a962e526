package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/adstudio/backend/internal/logging"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds with service health information.
type HealthHandler struct {
	Database Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Database == nil {
		respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.Database.Ping(pingCtx); err != nil {
		logging.FromContext(ctx).Error("database ping failed", "error", err)
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
