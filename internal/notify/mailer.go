// Package notify sends transactional email for order events.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/config"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("message has no recipient")

type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string

	// Tag groups messages in the provider's dashboard.
	Tag string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Sender is the From address of every message.
type Sender struct {
	Email string
	Name  string
}

// NewMailer picks the provider named in cfg.
func NewMailer(cfg config.MailConfig, log *zap.Logger) (Mailer, error) {
	sender := Sender{Email: cfg.SenderEmail, Name: cfg.SenderName}
	switch cfg.Provider {
	case "sendgrid":
		return NewSendGridMailer(cfg.SendGridAPIKey, "", sender), nil
	case "postmark":
		return NewPostmarkMailer(cfg.PostmarkServerToken, "", sender), nil
	case "log", "":
		return NewLogMailer(log), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log.Named("mail")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	m.log.Info("email not delivered, no provider configured",
		zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
