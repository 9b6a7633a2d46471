package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridMailer struct {
	client *sendgrid.Client
	sender Sender
}

// NewSendGridMailer posts to the public API when host is empty.
func NewSendGridMailer(apiKey, host string, sender Sender) *SendGridMailer {
	return &SendGridMailer{
		client: &sendgrid.Client{Request: sendgrid.GetRequest(apiKey, "/v3/mail/send", host)},
		sender: sender,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	from := mail.NewEmail(m.sender.Name, m.sender.Email)
	to := mail.NewEmail(msg.ToName, msg.To)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)
	if msg.Tag != "" {
		email.AddCategories(msg.Tag)
	}

	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send email: sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
