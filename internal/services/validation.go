package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/peerpay/backend/internal/ledger"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    string            `json:"code,omitempty"`    // Machine-readable rejection code
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		for _, err := range validationErr.(validator.ValidationErrors) {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// ledgerStatus maps a rejection kind to its HTTP status.
func ledgerStatus(kind ledger.Kind) int {
	switch kind {
	case ledger.KindInvalidAmount, ledger.KindSelfRelation:
		return http.StatusBadRequest
	case ledger.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case ledger.KindUnknownUser:
		return http.StatusNotFound
	case ledger.KindRelationMissing:
		return http.StatusForbidden
	case ledger.KindRelationExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SendLedgerError translates a ledger rejection into a JSON error response.
// Persistence failures are masked behind a generic message.
func SendLedgerError(w http.ResponseWriter, err error) {
	kind := ledger.ErrKind(err)
	status := ledgerStatus(kind)

	resp := ErrorResponse{Error: err.Error(), Code: kind.String()}
	if status == http.StatusInternalServerError {
		resp.Error = "An Internal Error Occurred"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
