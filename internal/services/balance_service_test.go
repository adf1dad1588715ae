package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/peerpay/backend/internal/ledger"
	"github.com/peerpay/backend/internal/middleware"
)

func authedRequest(method, target string, body []byte, accountID int) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	ctx := context.WithValue(r.Context(), middleware.ContextKeyAccountID, accountID)
	return r.WithContext(ctx)
}

func TestBalanceService_Credit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceService(ledger.NewLedger(db), nil)

	t.Run("successful credit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, username, email, balance, version FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version"}).
				AddRow(1, "john", "test@example.com", "100.00", 1))
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(1, 1, "Crédit", "25.5").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(9, time.Now()))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs("125.5", 1, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(MovementRequest{Amount: "25.50"})
		w := httptest.NewRecorder()

		service.Credit(w, authedRequest("POST", "/balance/credit", body, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		var response BalanceResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "125.50", response.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid amount", func(t *testing.T) {
		body, _ := json.Marshal(MovementRequest{Amount: "not-a-number"})
		w := httptest.NewRecorder()

		service.Credit(w, authedRequest("POST", "/balance/credit", body, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "INVALID_AMOUNT", response.Code)
	})

	t.Run("missing auth context", func(t *testing.T) {
		body, _ := json.Marshal(MovementRequest{Amount: "10"})
		r := httptest.NewRequest("POST", "/balance/credit", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Credit(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestBalanceService_Withdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceService(ledger.NewLedger(db), nil)

	t.Run("insufficient balance maps to 422", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, username, email, balance, version FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version"}).
				AddRow(1, "john", "test@example.com", "5.00", 1))
		mock.ExpectRollback()

		body, _ := json.Marshal(MovementRequest{Amount: "10.00"})
		w := httptest.NewRecorder()

		service.Withdraw(w, authedRequest("POST", "/balance/withdraw", body, 1))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "INSUFFICIENT_BALANCE", response.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid request body", func(t *testing.T) {
		w := httptest.NewRecorder()

		service.Withdraw(w, authedRequest("POST", "/balance/withdraw", []byte("invalid"), 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBalanceService_GetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceService(ledger.NewLedger(db), nil)

	t.Run("returns the committed balance", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, email, balance, version, created_at, updated_at FROM accounts WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version", "created_at", "updated_at"}).
				AddRow(1, "john", "test@example.com", "42.10", 1, time.Now(), time.Now()))

		w := httptest.NewRecorder()

		service.GetBalance(w, authedRequest("GET", "/balance", nil, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		var response BalanceResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "42.10", response.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
