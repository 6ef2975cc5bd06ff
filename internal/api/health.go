package api

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

// handleHealthz reports liveness plus the contest phase, so a health check
// can tell an idle server from one mid-contest without hitting /v1/status.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	body := healthResponse{Status: "ok", Phase: s.contest.Status().Phase}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}
