package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/peerpay/backend/internal/ledger"
	"github.com/peerpay/backend/internal/models"
)

// QRService issues short-lived payment request codes. A request embeds the
// requesting account's email so a scanner can prefill a transfer toward it.
type QRService struct {
	redis *redis.Client
}

// PaymentRequest is the payload behind one QR token.
type PaymentRequest struct {
	AccountID int    `json:"account_id"`
	Email     string `json:"email"`
	Amount    string `json:"amount,omitempty"` // optional, normalized to two decimals
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
}

func NewQRService(redis *redis.Client) *QRService {
	return &QRService{redis: redis}
}

// ErrPaymentRequestsUnavailable is returned when the token store is not
// connected. Tokens have to expire server-side, so there is no degraded mode.
var ErrPaymentRequestsUnavailable = errors.New("payment requests unavailable")

// GeneratePaymentRequest creates a single-use token for the account and the
// QR image encoding it. An empty amount leaves the sum to the payer.
func (s *QRService) GeneratePaymentRequest(ctx context.Context, account *models.Account, rawAmount string) (string, string, error) {
	if s.redis == nil {
		return "", "", ErrPaymentRequestsUnavailable
	}

	request := PaymentRequest{
		AccountID: account.ID,
		Email:     account.Email,
		Timestamp: time.Now().Unix(),
		Nonce:     s.generateNonce(),
	}

	if rawAmount != "" {
		amount, err := ledger.Normalize(rawAmount)
		if err != nil {
			return "", "", err
		}
		request.Amount = amount.StringFixed(2)
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", "", err
	}

	token := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("qr:%s", token)
	if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return token, qrImage, nil
}

// ResolvePaymentRequest redeems a scanned token. Tokens are single use:
// resolving one deletes it.
func (s *QRService) ResolvePaymentRequest(ctx context.Context, token string) (*PaymentRequest, error) {
	if s.redis == nil {
		return nil, ErrPaymentRequestsUnavailable
	}

	key := fmt.Sprintf("qr:%s", token)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired payment request")
	}
	if err != nil {
		return nil, err
	}

	var request PaymentRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return &request, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
