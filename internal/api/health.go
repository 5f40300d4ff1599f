package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lumenprima/scannerd/internal/store"
)

// HealthResponse is the health check body (spec.md's ambient observability
// surface, not a named spec module).
type HealthResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// HealthHandler reports whether persistence is reachable and whether the
// downstream dispatch stream is enabled. It does not probe the dispatch
// connection itself.
type HealthHandler struct {
	store     *store.Store
	dispatch  DispatchStatus
	startTime time.Time
}

// DispatchStatus is the narrow view of the dispatch streamer the health
// check needs, kept as an interface so this package doesn't need to import
// internal/dispatch for a single bool.
type DispatchStatus interface {
	Enabled() bool
}

func NewHealthHandler(s *store.Store, dispatch DispatchStatus, startTime time.Time) *HealthHandler {
	return &HealthHandler{store: s, dispatch: dispatch, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.dispatch != nil {
		if h.dispatch.Enabled() {
			checks["dispatch"] = "enabled"
		} else {
			checks["dispatch"] = "disabled"
		}
	} else {
		checks["dispatch"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
