package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleWalletBalance handles GET /api/wallet/{address}/balance
func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if address == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Wallet address required", nil)
		return
	}

	balance, err := s.balances.BalanceOf(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, balance)
}
