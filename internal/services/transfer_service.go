package services

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/peerpay/backend/internal/events"
	"github.com/peerpay/backend/internal/ledger"
	"github.com/peerpay/backend/internal/middleware"
)

// TransferService exposes peer transfers and the sent-transfers listing.
type TransferService struct {
	ledger    *ledger.Ledger
	publisher *events.Publisher
	validator *validator.Validate
}

// TransferRequest carries one peer transfer. The payee is addressed by
// email; amount parsing is owned by the ledger.
// @Description Transfer request structure
type TransferRequest struct {
	Email       string `json:"email" validate:"required,email" example:"friend@example.com"` // Payee email
	Amount      string `json:"amount" validate:"required" example:"10.00"`                   // Amount to transfer
	Description string `json:"description" validate:"max=140" example:"lunch"`               // Free-text description
}

// TransferResponse reports the committed transfer.
// @Description Transfer response structure
type TransferResponse struct {
	TransactionID int    `json:"transaction_id" example:"42"`
	Amount        string `json:"amount" example:"10.00"`
	Description   string `json:"description" example:"lunch"`
	PayeeUsername string `json:"payee_username" example:"bob"`
	PayeeEmail    string `json:"payee_email" example:"friend@example.com"`
	Balance       string `json:"balance" example:"90.00"` // Payer balance after the transfer
}

func NewTransferService(l *ledger.Ledger, publisher *events.Publisher) *TransferService {
	return &TransferService{
		ledger:    l,
		publisher: publisher,
		validator: validator.New(),
	}
}

// Transfer moves funds from the authenticated account to a related payee
// @Summary Transfer to a related account
// @Description Move a positive amount to the payee resolved by email; requires an existing relation to the payee
// @Tags transfers
// @Accept json
// @Produce json
// @Param request body TransferRequest true "Transfer request"
// @Success 200 {object} TransferResponse "Transfer successful"
// @Failure 400 {object} ErrorResponse "Invalid amount"
// @Failure 401 {string} string "Unauthorized"
// @Failure 403 {object} ErrorResponse "No relation to the payee"
// @Failure 404 {object} ErrorResponse "Unknown payee"
// @Failure 422 {object} ErrorResponse "Insufficient balance"
// @Router /transfers [post]
func (s *TransferService) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req TransferRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	log.Printf("[TRANSFER] Transfer request from account %d to %s", accountID, req.Email)

	result, err := s.ledger.Transfer(r.Context(), accountID, req.Email, req.Amount, req.Description)
	if err != nil {
		log.Printf("[TRANSFER] Transfer rejected for account %d: %v", accountID, err)
		SendLedgerError(w, err)
		return
	}

	if err := s.publisher.PublishTransferCompleted(r.Context(), events.TransferCompleted{
		TransactionID: result.Transaction.ID,
		SenderID:      result.Transaction.SenderID,
		ReceiverID:    result.Transaction.ReceiverID,
		Amount:        result.Transaction.Amount.StringFixed(2),
		Description:   result.Transaction.Description,
		CompletedAt:   time.Now(),
	}); err != nil {
		// The transfer is already committed; event delivery is best effort.
		log.Printf("[TRANSFER] Event publish failed for transaction %d: %v", result.Transaction.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TransferResponse{
		TransactionID: result.Transaction.ID,
		Amount:        result.Transaction.Amount.StringFixed(2),
		Description:   result.Transaction.Description,
		PayeeUsername: result.Payee.Username,
		PayeeEmail:    result.Payee.Email,
		Balance:       result.PayerBalance.Balance.StringFixed(2),
	})
}

// ListSent returns the transfers the authenticated account initiated
// @Summary List sent transfers
// @Description List the peer transfers the authenticated account initiated, newest first
// @Tags transfers
// @Produce json
// @Success 200 {array} models.Transaction "Sent transfers"
// @Failure 401 {string} string "Unauthorized"
// @Router /transfers/sent [get]
func (s *TransferService) ListSent(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sent, err := s.ledger.Store().TransactionsSent(r.Context(), accountID)
	if err != nil {
		log.Printf("[TRANSFER] Sent listing failed for account %d: %v", accountID, err)
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sent)
}
