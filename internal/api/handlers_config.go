package api

import (
	"net/http"

	"github.com/token-gate/internal/models"
)

// handleGetConfig handles GET /api/config
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.configStore.Get())
}

// handleUpdateConfig handles PATCH /api/config (admin). Absent fields
// keep their current values; any invalid field rejects the whole patch.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch models.ConfigPatch
	if err := parseJSONBody(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	updated, err := s.configStore.Update(r.Context(), capabilityFrom(r), &patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}
