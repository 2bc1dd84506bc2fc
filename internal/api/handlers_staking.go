package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// stakeRequest is the body for stake and unstake operations. Amounts are
// JSON strings so callers never lose precision to float encoding.
type stakeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// handleStake handles POST /api/staking/{accountId}/stake
func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	var req stakeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	position, err := s.staking.Stake(r.Context(), accountID, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, position)
}

// handleUnstake handles POST /api/staking/{accountId}/unstake
func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	var req stakeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	position, err := s.staking.Unstake(r.Context(), accountID, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, position)
}

// handleClaim handles POST /api/staking/{accountId}/claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	result, err := s.staking.Claim(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleStakingPosition handles GET /api/staking/{accountId}
func (s *Server) handleStakingPosition(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	position, err := s.staking.PositionOf(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, position)
}

// handleStakingHistory handles GET /api/staking/{accountId}/history
func (s *Server) handleStakingHistory(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid limit parameter", nil)
			return
		}
		limit = parsed
	}

	events, err := s.history.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accountId": accountID,
		"events":    events,
		"count":     len(events),
	})
}

// handlePoolInfo handles GET /api/staking/pool
func (s *Server) handlePoolInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.staking.PoolInfo(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// handleSetAPY handles PUT /api/staking/apy (admin)
func (s *Server) handleSetAPY(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APYBasisPoints int64 `json:"apyBasisPoints"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := s.staking.SetAPY(r.Context(), capabilityFrom(r), req.APYBasisPoints); err != nil {
		respondServiceError(w, err)
		return
	}

	info, err := s.staking.PoolInfo(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}
