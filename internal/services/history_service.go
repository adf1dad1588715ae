package services

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/peerpay/backend/internal/ledger"
	"github.com/peerpay/backend/internal/middleware"
)

// HistoryService serves the sign-adjusted activity feed.
type HistoryService struct {
	ledger *ledger.Ledger
}

func NewHistoryService(l *ledger.Ledger) *HistoryService {
	return &HistoryService{ledger: l}
}

// GetHistory returns the authenticated account's operation feed
// @Summary Operation history
// @Description List every operation involving the authenticated account, newest first; outgoing transfer amounts are negated for presentation
// @Tags operations
// @Produce json
// @Success 200 {array} models.Operation "Operation feed"
// @Failure 401 {string} string "Unauthorized"
// @Router /operations [get]
func (s *HistoryService) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	operations, err := s.ledger.History(r.Context(), accountID)
	if err != nil {
		log.Printf("[HISTORY] Projection failed for account %d: %v", accountID, err)
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(operations)
}
