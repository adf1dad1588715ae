package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/peerpay/backend/internal/ledger"
	"github.com/peerpay/backend/internal/middleware"
	"github.com/peerpay/backend/internal/services"
)

type QRHandler struct {
	service   *services.QRService
	ledger    *ledger.Ledger
	validator *services.ValidationHelper
}

func NewQRHandler(service *services.QRService, l *ledger.Ledger) *QRHandler {
	return &QRHandler{
		service:   service,
		ledger:    l,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR issues a payment request QR for the authenticated account
// @Summary Generate payment request QR
// @Description Generate a short-lived QR code requesting a transfer toward the authenticated account
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=string} true "QR generation request"
// @Success 200 {object} object{token=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount string `json:"amount"` // optional
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	account, err := h.ledger.Store().FindAccountByID(r.Context(), accountID)
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}

	token, qrImage, err := h.service.GeneratePaymentRequest(r.Context(), account, req.Amount)
	if err != nil {
		if ledger.IsKind(err, ledger.KindInvalidAmount) {
			services.SendLedgerError(w, err)
			return
		}
		if errors.Is(err, services.ErrPaymentRequestsUnavailable) {
			services.SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
			return
		}
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"token":   token,
		"qrImage": qrImage,
	})
}

// ProcessQR redeems a scanned payment request
// @Summary Process payment request QR
// @Description Resolve a scanned QR token into the payee email and requested amount
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{qrData=string} true "QR processing request"
// @Success 200 {object} object{email=string,amount=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	request, err := h.service.ResolvePaymentRequest(r.Context(), req.QRData)
	if err != nil {
		if errors.Is(err, services.ErrPaymentRequestsUnavailable) {
			services.SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
			return
		}
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    request,
	})
}
