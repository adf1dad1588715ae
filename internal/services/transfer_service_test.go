package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/peerpay/backend/internal/ledger"
)

func TestTransferService_Transfer(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	// A nil publisher drops events, so no Kafka is needed here.
	service := NewTransferService(ledger.NewLedger(db), nil)

	t.Run("successful transfer", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, email, balance, version, created_at, updated_at FROM accounts WHERE email = \\$1").
			WithArgs("bob@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version", "created_at", "updated_at"}).
				AddRow(2, "bob", "bob@example.com", "50.00", 1, time.Now(), time.Now()))
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version"}).
				AddRow(1, "alice", "alice@example.com", "100.00", 1))
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version"}).
				AddRow(2, "bob", "bob@example.com", "50.00", 1))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(1, 2).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(1, 2, "lunch", "10").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, time.Now()))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs("90", 1, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs("60", 2, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(TransferRequest{Email: "bob@example.com", Amount: "10", Description: "lunch"})
		w := httptest.NewRecorder()

		service.Transfer(w, authedRequest("POST", "/transfers", body, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		var response TransferResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, 42, response.TransactionID)
		assert.Equal(t, "10.00", response.Amount)
		assert.Equal(t, "90.00", response.Balance)
		assert.Equal(t, "bob", response.PayeeUsername)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("relation missing maps to 403", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, email, balance, version, created_at, updated_at FROM accounts WHERE email = \\$1").
			WithArgs("bob@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version", "created_at", "updated_at"}).
				AddRow(2, "bob", "bob@example.com", "50.00", 1, time.Now(), time.Now()))
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version"}).
				AddRow(1, "alice", "alice@example.com", "100.00", 1))
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "balance", "version"}).
				AddRow(2, "bob", "bob@example.com", "50.00", 1))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(1, 2).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		body, _ := json.Marshal(TransferRequest{Email: "bob@example.com", Amount: "10", Description: "x"})
		w := httptest.NewRecorder()

		service.Transfer(w, authedRequest("POST", "/transfers", body, 1))

		assert.Equal(t, http.StatusForbidden, w.Code)
		var response ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "RELATION_MISSING", response.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown payee maps to 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username, email, balance, version, created_at, updated_at FROM accounts WHERE email = \\$1").
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		body, _ := json.Marshal(TransferRequest{Email: "nobody@example.com", Amount: "10"})
		w := httptest.NewRecorder()

		service.Transfer(w, authedRequest("POST", "/transfers", body, 1))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid email fails validation", func(t *testing.T) {
		body, _ := json.Marshal(TransferRequest{Email: "not-an-email", Amount: "10"})
		w := httptest.NewRecorder()

		service.Transfer(w, authedRequest("POST", "/transfers", body, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
