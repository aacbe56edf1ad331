package server

import "net/http"

// HealthHandler answers liveness checks. It also reports whether the hosted
// backend is reachable so dashboards can tell local trouble from upstream
// trouble.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		backendOnline := true
		if s.backends.Prober != nil {
			backendOnline = s.backends.Prober.Online(r.Context())
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"app":            s.config.GetAppName(),
			"backend_online": backendOnline,
		})
	}
}
