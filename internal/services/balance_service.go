package services

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/peerpay/backend/internal/ledger"
	"github.com/peerpay/backend/internal/middleware"
)

// BalanceService exposes the credit/withdraw operations and the balance
// enquiry over HTTP. Committed withdrawals are handed to the settlement
// queue on the way out.
type BalanceService struct {
	ledger     *ledger.Ledger
	settlement *SettlementService
	validator  *validator.Validate
}

// MovementRequest carries the amount for a credit or withdrawal. The amount
// travels as a string so the decimal normalization owns all parsing.
// @Description Balance movement request structure
type MovementRequest struct {
	Amount string `json:"amount" validate:"required" example:"25.50"` // Amount to move
}

// BalanceResponse reports the committed balance after a movement.
// @Description Balance response structure
type BalanceResponse struct {
	AccountID int    `json:"account_id" example:"1"`
	Balance   string `json:"balance" example:"125.50"`
}

func NewBalanceService(l *ledger.Ledger, settlement *SettlementService) *BalanceService {
	return &BalanceService{
		ledger:     l,
		settlement: settlement,
		validator:  validator.New(),
	}
}

func (s *BalanceService) decodeMovement(w http.ResponseWriter, r *http.Request) (*MovementRequest, bool) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req MovementRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

// Credit adds funds to the authenticated account
// @Summary Credit the account
// @Description Add a positive amount to the authenticated account's balance
// @Tags balance
// @Accept json
// @Produce json
// @Param request body MovementRequest true "Credit request"
// @Success 200 {object} BalanceResponse "Credit successful"
// @Failure 400 {object} ErrorResponse "Invalid amount"
// @Failure 401 {string} string "Unauthorized"
// @Router /balance/credit [post]
func (s *BalanceService) Credit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	req, ok := s.decodeMovement(w, r)
	if !ok {
		return
	}

	log.Printf("[BALANCE] Credit request for account %d", accountID)

	result, err := s.ledger.Credit(r.Context(), accountID, req.Amount)
	if err != nil {
		log.Printf("[BALANCE] Credit rejected for account %d: %v", accountID, err)
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{
		AccountID: result.Account.ID,
		Balance:   result.Account.Balance.StringFixed(2),
	})
}

// Withdraw removes funds from the authenticated account
// @Summary Withdraw from the account
// @Description Remove a positive amount from the authenticated account's balance; rejected if the balance cannot cover it
// @Tags balance
// @Accept json
// @Produce json
// @Param request body MovementRequest true "Withdrawal request"
// @Success 200 {object} BalanceResponse "Withdrawal successful"
// @Failure 400 {object} ErrorResponse "Invalid amount"
// @Failure 401 {string} string "Unauthorized"
// @Failure 422 {object} ErrorResponse "Insufficient balance"
// @Router /balance/withdraw [post]
func (s *BalanceService) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	req, ok := s.decodeMovement(w, r)
	if !ok {
		return
	}

	log.Printf("[BALANCE] Withdrawal request for account %d", accountID)

	result, err := s.ledger.Withdraw(r.Context(), accountID, req.Amount)
	if err != nil {
		log.Printf("[BALANCE] Withdrawal rejected for account %d: %v", accountID, err)
		SendLedgerError(w, err)
		return
	}

	if s.settlement != nil {
		if err := s.settlement.EnqueueWithdrawal(r.Context(), result.Transaction, result.Account); err != nil {
			// The withdrawal is committed; settlement catches up on retry.
			log.Printf("[BALANCE] Settlement enqueue failed for transaction %d: %v", result.Transaction.ID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{
		AccountID: result.Account.ID,
		Balance:   result.Account.Balance.StringFixed(2),
	})
}

// GetBalance returns the authenticated account's committed balance
// @Summary Balance enquiry
// @Description Get the authenticated account's current balance
// @Tags balance
// @Produce json
// @Success 200 {object} BalanceResponse "Current balance"
// @Failure 401 {string} string "Unauthorized"
// @Router /balance [get]
func (s *BalanceService) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := s.ledger.Store().FindAccountByID(r.Context(), accountID)
	if err != nil {
		log.Printf("[BALANCE] Balance enquiry failed for account %d: %v", accountID, err)
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{
		AccountID: account.ID,
		Balance:   account.Balance.StringFixed(2),
	})
}
