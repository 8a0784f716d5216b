package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

var ErrInvalidSignature = errors.New("invalid payment signature")

type Order struct {
	ID       string `json:"gatewayOrderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	KeyID    string `json:"keyId"`
}

type WebhookEvent struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			ID               string `json:"id"`
			OrderID          string `json:"order_id"`
			ErrorDescription string `json:"error_description"`
		} `json:"payment"`
	} `json:"payload"`
}

// Gateway signs and verifies checkout payments with shared HMAC secrets.
type Gateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	currency      string
}

func NewGateway(keyID, keySecret, webhookSecret, currency string) *Gateway {
	return &Gateway{keyID: keyID, keySecret: keySecret, webhookSecret: webhookSecret, currency: currency}
}

func (g *Gateway) Enabled() bool { return g.keyID != "" && g.keySecret != "" }

func (g *Gateway) CreateOrder(amount int64, receipt string) (Order, error) {
	if amount <= 0 {
		return Order{}, fmt.Errorf("amount must be positive, got %d", amount)
	}
	id := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return Order{ID: id, Amount: amount, Currency: g.currency, Receipt: receipt, KeyID: g.keyID}, nil
}

// VerifyPayment checks the checkout signature over "orderID|paymentID".
func (g *Gateway) VerifyPayment(orderID, paymentID, signature string) error {
	if !verify(g.keySecret, []byte(orderID+"|"+paymentID), signature) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *Gateway) ParseWebhook(body []byte, signature string) (WebhookEvent, error) {
	var ev WebhookEvent
	if g.webhookSecret == "" || !verify(g.webhookSecret, body, signature) {
		return ev, ErrInvalidSignature
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("decode webhook: %w", err)
	}
	return ev, nil
}

func Sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret string, msg []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hmac.Equal(mac.Sum(nil), got)
}
