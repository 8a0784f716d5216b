package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
)

// Notifier sends best-effort messages to users. Implementations never
// return errors; failures are logged.
type Notifier interface {
	OrderPlaced(ctx context.Context, to models.User, order models.Order)
	OrderStatusChanged(ctx context.Context, to models.User, order models.Order)
	SellerApplicationDecided(ctx context.Context, to models.User, app models.SellerApplication)
}

type message struct {
	to      string
	subject string
	body    string
	kind    string
}

func orderPlaced(u models.User, o models.Order) message {
	return message{
		to:      u.Email,
		kind:    "order.placed",
		subject: fmt.Sprintf("Order %s confirmed", o.OrderNumber),
		body: fmt.Sprintf("Hi %s,\n\nWe received your order %s for %.2f. Payment: %s.\n",
			u.Name, o.OrderNumber, o.Total, o.PaymentMethod),
	}
}

func orderStatusChanged(u models.User, o models.Order) message {
	return message{
		to:      u.Email,
		kind:    "order.status",
		subject: fmt.Sprintf("Order %s is now %s", o.OrderNumber, o.Status),
		body:    fmt.Sprintf("Hi %s,\n\nYour order %s is now %s.\n", u.Name, o.OrderNumber, o.Status),
	}
}

func applicationDecided(u models.User, a models.SellerApplication) message {
	m := message{to: u.Email, kind: "seller_application." + a.Status}
	if a.Status == models.ApplicationApproved {
		m.subject = "Your seller application was approved"
		m.body = fmt.Sprintf("Hi %s,\n\n%s can now list products on VCX Mart.\n", u.Name, a.BusinessName)
	} else {
		m.subject = "Your seller application was not approved"
		m.body = fmt.Sprintf("Hi %s,\n\nReason: %s\n", u.Name, a.RejectionReason)
	}
	return m
}

// Log writes notifications to the structured log instead of sending them.
type Log struct{}

func (Log) OrderPlaced(_ context.Context, to models.User, o models.Order) {
	Log{}.emit(orderPlaced(to, o))
}

func (Log) OrderStatusChanged(_ context.Context, to models.User, o models.Order) {
	Log{}.emit(orderStatusChanged(to, o))
}

func (Log) SellerApplicationDecided(_ context.Context, to models.User, a models.SellerApplication) {
	Log{}.emit(applicationDecided(to, a))
}

func (Log) emit(m message) {
	logger.Info(nil, "notify."+m.kind, map[string]any{"to": m.to, "subject": m.subject})
}

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP delivers notifications by mail. Sends run in the background so a
// slow mail server never holds up a request.
type SMTP struct {
	cfg  SMTPConfig
	send sendFunc
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTP) OrderPlaced(_ context.Context, to models.User, o models.Order) {
	s.dispatch(orderPlaced(to, o))
}

func (s *SMTP) OrderStatusChanged(_ context.Context, to models.User, o models.Order) {
	s.dispatch(orderStatusChanged(to, o))
}

func (s *SMTP) SellerApplicationDecided(_ context.Context, to models.User, a models.SellerApplication) {
	s.dispatch(applicationDecided(to, a))
}

func (s *SMTP) dispatch(m message) {
	if m.to == "" {
		return
	}
	go func() {
		if err := s.deliver(m); err != nil {
			logger.Error(nil, "notify."+m.kind, err, map[string]any{"to": m.to})
		}
	}()
}

func (s *SMTP) deliver(m message) error {
	var a smtp.Auth
	if s.cfg.User != "" {
		a = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.to)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.body, "\n", "\r\n"))
	return s.send(s.cfg.Host+":"+s.cfg.Port, a, s.cfg.From, []string{m.to}, []byte(b.String()))
}

// New picks the SMTP notifier when a mail host is configured.
func New(cfg SMTPConfig) Notifier {
	if cfg.Host == "" {
		return Log{}
	}
	return NewSMTP(cfg)
}
