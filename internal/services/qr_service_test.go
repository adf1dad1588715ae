package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/peerpay/backend/internal/ledger"
	"github.com/peerpay/backend/internal/models"
)

func TestQRService_PaymentRequestRoundTrip(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	service := NewQRService(redisClient)

	account := &models.Account{
		ID:      1,
		Email:   "alice@example.com",
		Balance: decimal.Zero,
	}

	redisMock.Regexp().ExpectSet(`qr:.*`, `.*`, 5*time.Minute).SetVal("OK")

	token, qrImage, err := service.GeneratePaymentRequest(context.Background(), account, "12.5")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, qrImage)
	assert.NoError(t, redisMock.ExpectationsWereMet())

	// The token is the base64 payload itself, so the stored value can be
	// reconstructed for the resolve side.
	payload, err := base64.URLEncoding.DecodeString(token)
	assert.NoError(t, err)

	var request PaymentRequest
	assert.NoError(t, json.Unmarshal(payload, &request))
	assert.Equal(t, "alice@example.com", request.Email)
	assert.Equal(t, "12.50", request.Amount)

	redisMock.ExpectGet("qr:" + token).SetVal(string(payload))
	redisMock.ExpectDel("qr:" + token).SetVal(1)

	resolved, err := service.ResolvePaymentRequest(context.Background(), token)
	assert.NoError(t, err)
	assert.Equal(t, 1, resolved.AccountID)
	assert.Equal(t, "12.50", resolved.Amount)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestQRService_RejectsInvalidAmount(t *testing.T) {
	redisClient, _ := redismock.NewClientMock()
	service := NewQRService(redisClient)

	account := &models.Account{ID: 1, Email: "alice@example.com"}

	_, _, err := service.GeneratePaymentRequest(context.Background(), account, "-4")
	assert.True(t, ledger.IsKind(err, ledger.KindInvalidAmount))
}

func TestQRService_ExpiredToken(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	service := NewQRService(redisClient)

	redisMock.ExpectGet("qr:stale").RedisNil()

	_, err := service.ResolvePaymentRequest(context.Background(), "stale")
	assert.Error(t, err)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestQRService_UnavailableWithoutRedis(t *testing.T) {
	service := NewQRService(nil)
	account := &models.Account{ID: 1, Email: "alice@example.com"}

	_, _, err := service.GeneratePaymentRequest(context.Background(), account, "12.50")
	assert.ErrorIs(t, err, ErrPaymentRequestsUnavailable)

	_, err = service.ResolvePaymentRequest(context.Background(), "token")
	assert.ErrorIs(t, err, ErrPaymentRequestsUnavailable)
}
