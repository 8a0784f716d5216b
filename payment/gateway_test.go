package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	g := NewGateway("key_1", "sec", "wh", "INR")
	o, err := g.CreateOrder(49999, "VCX250101000001")
	require.NoError(t, err)
	assert.Regexp(t, `^order_[0-9a-f]{14}$`, o.ID)
	assert.Equal(t, int64(49999), o.Amount)
	assert.Equal(t, "INR", o.Currency)
	assert.Equal(t, "key_1", o.KeyID)

	_, err = g.CreateOrder(0, "x")
	assert.Error(t, err)
}

func TestVerifyPayment(t *testing.T) {
	g := NewGateway("key_1", "sec", "wh", "INR")
	sig := Sign("sec", []byte("order_abc|pay_123"))

	assert.NoError(t, g.VerifyPayment("order_abc", "pay_123", sig))
	assert.ErrorIs(t, g.VerifyPayment("order_abc", "pay_999", sig), ErrInvalidSignature)
	assert.ErrorIs(t, g.VerifyPayment("order_abc", "pay_123", "zz"), ErrInvalidSignature)
}

func TestParseWebhook(t *testing.T) {
	g := NewGateway("key_1", "sec", "wh", "INR")
	body := []byte(`{"id":"evt_1","event":"payment.captured","payload":{"payment":{"id":"pay_1","order_id":"order_abc"}}}`)

	ev, err := g.ParseWebhook(body, Sign("wh", body))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentCaptured, ev.Event)
	assert.Equal(t, "order_abc", ev.Payload.Payment.OrderID)

	_, err = g.ParseWebhook(body, Sign("other", body))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = NewGateway("k", "s", "", "INR").ParseWebhook(body, Sign("", body))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
