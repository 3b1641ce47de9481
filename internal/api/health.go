package api

import (
	"net/http"
	"slices"
)

// HealthResponse reports the store and each optional collaborator.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// handleHealth returns 200 when every component is healthy and 503
// otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Components: map[string]string{"store": "ok"},
	}

	if err := s.store.HealthCheck(ctx); err != nil {
		resp.Components["store"] = err.Error()
		resp.Status = "degraded"
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		status := "ok"
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			status = err.Error()
			resp.Status = "degraded"
		}
		resp.Components[name] = status
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
