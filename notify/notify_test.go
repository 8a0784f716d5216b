package notify

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/smtp"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomanqadri34/vcx-mart-sub002/models"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type sent struct {
	addr string
	to   []string
	msg  string
}

func TestNewPicksImplementation(t *testing.T) {
	assert.IsType(t, Log{}, New(SMTPConfig{}))
	assert.IsType(t, &SMTP{}, New(SMTPConfig{Host: "mail.local", Port: "25"}))
}

func TestSMTPOrderPlaced(t *testing.T) {
	ch := make(chan sent, 1)
	s := NewSMTP(SMTPConfig{Host: "mail.local", Port: "2525", From: "shop@vcx.test"})
	s.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		ch <- sent{addr: addr, to: to, msg: string(msg)}
		return nil
	}

	s.OrderPlaced(context.Background(),
		models.User{Name: "Asha", Email: "asha@example.com"},
		models.Order{OrderNumber: "VCX250101123456", Total: 708, PaymentMethod: "cod"})

	select {
	case got := <-ch:
		assert.Equal(t, "mail.local:2525", got.addr)
		assert.Equal(t, []string{"asha@example.com"}, got.to)
		assert.Contains(t, got.msg, "Subject: Order VCX250101123456 confirmed")
		assert.Contains(t, got.msg, "708.00")
	case <-time.After(2 * time.Second):
		t.Fatal("mail not sent")
	}
}

func TestSMTPFailureIsLogged(t *testing.T) {
	var buf lockedBuffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	done := make(chan struct{})
	s := NewSMTP(SMTPConfig{Host: "mail.local", Port: "25"})
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		defer close(done)
		return errors.New("connection refused")
	}

	s.SellerApplicationDecided(context.Background(),
		models.User{Email: "a@b.c"},
		models.SellerApplication{Status: models.ApplicationRejected, RejectionReason: "missing PAN"})
	<-done

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "connection refused")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	Log{}.OrderStatusChanged(context.Background(),
		models.User{Email: "x@y.z"},
		models.Order{OrderNumber: "VCX1", Status: models.OrderShipped})
	assert.Contains(t, buf.String(), `"action":"notify.order.status"`)
	assert.Contains(t, buf.String(), "is now shipped")
}
