package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/token-gate/internal/types"
)

// membershipResponse wraps a status projection, optionally carrying the
// informational code for idempotent re-requests.
type membershipResponse struct {
	*types.MembershipStatus
	Code string `json:"code,omitempty"`
}

// handleRequestVerification handles POST /api/membership/{accountId}/verify
func (s *Server) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]
	if accountID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Account ID required", nil)
		return
	}

	// An empty body is a bare re-request: wallet and reference keep
	// their previous values.
	var req struct {
		WalletAddress string `json:"walletAddress"`
		Reference     string `json:"reference"`
	}
	if err := parseJSONBody(r, &req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	status, err := s.membership.RequestVerification(r.Context(), accountID, req.WalletAddress, req.Reference)
	if err != nil {
		// A repeat request while pending or already approved is not a
		// failure: report the current state with the informational code.
		if types.IsCode(err, types.CodeAlreadyPending) || types.IsCode(err, types.CodeAlreadyApproved) {
			serviceErr := err.(*types.ServiceError)
			respondJSON(w, http.StatusOK, membershipResponse{MembershipStatus: status, Code: serviceErr.Code})
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, membershipResponse{MembershipStatus: status})
}

// handleGrant handles POST /api/membership/{accountId}/grant (admin)
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	status, err := s.membership.Grant(r.Context(), capabilityFrom(r), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, membershipResponse{MembershipStatus: status})
}

// handleRevoke handles POST /api/membership/{accountId}/revoke (admin)
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	status, err := s.membership.Revoke(r.Context(), capabilityFrom(r), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, membershipResponse{MembershipStatus: status})
}

// handleMembershipStatus handles GET /api/membership/{accountId}
func (s *Server) handleMembershipStatus(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]
	if accountID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Account ID required", nil)
		return
	}

	status, err := s.membership.Status(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}
