package httpx

import (
	"context"
	"net/http"
)

// HealthHandlers serves the gateway's liveness and readiness probes.
// Liveness answers as long as the process serves HTTP; readiness also
// requires the registry database, since a gateway that cannot resolve logic
// modules cannot route anything.
type HealthHandlers struct {
	// Ready reports whether dependencies are reachable. Nil means always
	// ready.
	Ready func(ctx context.Context) error
}

// Live handles GET/HEAD /healthz.
func (h *HealthHandlers) Live(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": err.Error(),
			})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
