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

// RelationService manages the directed relation graph over HTTP.
type RelationService struct {
	ledger    *ledger.Ledger
	validator *validator.Validate
}

// RelationRequest adds one directed edge to the account resolved by email.
// @Description Relation request structure
type RelationRequest struct {
	Email string `json:"email" validate:"required,email" example:"friend@example.com"` // Account to relate to
}

// RelationResponse reports the created edge.
// @Description Relation response structure
type RelationResponse struct {
	ID        int `json:"id" example:"7"`
	OwnerID   int `json:"owner_id" example:"1"`
	RelatedID int `json:"related_id" example:"2"`
}

func NewRelationService(l *ledger.Ledger) *RelationService {
	return &RelationService{
		ledger:    l,
		validator: validator.New(),
	}
}

// AddRelation creates a directed edge from the authenticated account
// @Summary Add a relation
// @Description Add a directed relation to the account resolved by email; required before transferring to that account
// @Tags relations
// @Accept json
// @Produce json
// @Param request body RelationRequest true "Relation request"
// @Success 200 {object} RelationResponse "Relation created"
// @Failure 400 {object} ErrorResponse "Self relation"
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {object} ErrorResponse "Unknown account"
// @Failure 409 {object} ErrorResponse "Relation already exists"
// @Router /relations [post]
func (s *RelationService) AddRelation(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RelationRequest
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

	log.Printf("[RELATION] Add relation request from account %d to %s", accountID, req.Email)

	relation, err := s.ledger.AddRelation(r.Context(), accountID, req.Email)
	if err != nil {
		log.Printf("[RELATION] Add relation rejected for account %d: %v", accountID, err)
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RelationResponse{
		ID:        relation.ID,
		OwnerID:   relation.OwnerID,
		RelatedID: relation.RelatedID,
	})
}

// ListRelations returns the authenticated account's related profiles
// @Summary List relations
// @Description List the accounts the authenticated account can transfer to, sorted by username
// @Tags relations
// @Produce json
// @Success 200 {array} models.RelationProfile "Related accounts"
// @Failure 401 {string} string "Unauthorized"
// @Router /relations [get]
func (s *RelationService) ListRelations(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profiles, err := s.ledger.Relations(r.Context(), accountID)
	if err != nil {
		log.Printf("[RELATION] Listing failed for account %d: %v", accountID, err)
		SendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profiles)
}
