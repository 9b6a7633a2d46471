package notify

import (
	"context"
	"fmt"

	"github.com/keighl/postmark"
)

type PostmarkMailer struct {
	client *postmark.Client
	sender Sender
}

// NewPostmarkMailer talks to the public API when baseURL is empty.
func NewPostmarkMailer(serverToken, baseURL string, sender Sender) *PostmarkMailer {
	client := postmark.NewClient(serverToken, "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &PostmarkMailer{client: client, sender: sender}
}

// Send ignores ctx: the postmark client has no context support.
func (m *PostmarkMailer) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	from := m.sender.Email
	if m.sender.Name != "" {
		from = fmt.Sprintf("%s <%s>", m.sender.Name, m.sender.Email)
	}

	_, err := m.client.SendEmail(postmark.Email{
		From:     from,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTML,
		TextBody: msg.Text,
		Tag:      msg.Tag,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
