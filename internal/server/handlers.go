package server

import (
	"net/http"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "tradeledger",
	}

	if err := s.container.LedgerDB.QuickCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}

	writeJSON(w, status, response, s.log)
}
