package mailer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/wneessen/go-mail"
)

// Mailer sends rendered notification emails.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
}

// NewSMTPMailer builds an SMTP mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("smtp host required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errors.New("smtp from address required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 587
	}

	opts := []mail.Option{mail.WithPort(port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, err
	}
	return &SMTPMailer{client: client, from: from}, nil
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return m.client.DialAndSendWithContext(ctx, msg)
}

// Message is a captured email, for test assertions.
type Message struct {
	To      string
	Subject string
	Body    string
}

// RecordingMailer captures messages instead of sending them.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

// NewRecordingMailer initializes an empty recorder.
func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

func (m *RecordingMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	m.sent = append(m.sent, Message{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of all captured messages.
func (m *RecordingMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
