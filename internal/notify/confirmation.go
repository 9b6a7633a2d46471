package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const confirmationHTML = `<p>Thank you for your order!</p>
<p>Order <strong>{{.OrderID}}</strong> has been placed{{if eq .PaymentMode "COD"}} and will be paid on delivery{{end}}.</p>
<table>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}} x {{money .UnitPrice}}</td></tr>
{{end}}</table>
<p>Total: <strong>{{money .GrandTotal}} {{.Currency}}</strong></p>`

const confirmationText = `Thank you for your order!

Order {{.OrderID}} has been placed{{if eq .PaymentMode "COD"}} and will be paid on delivery{{end}}.
{{range .Items}}
- {{.Name}}: {{.Quantity}} x {{money .UnitPrice}}{{end}}

Total: {{money .GrandTotal}} {{.Currency}}
`

// OrderConfirmation emails the customer when an order is placed.
type OrderConfirmation struct {
	mailer Mailer
	html   *template.Template
	text   *texttemplate.Template
	log    *zap.Logger
}

func NewOrderConfirmation(mailer Mailer, log *zap.Logger) *OrderConfirmation {
	if log == nil {
		log = zap.NewNop()
	}
	funcs := map[string]any{"money": formatMoney}
	return &OrderConfirmation{
		mailer: mailer,
		html:   template.Must(template.New("confirmation.html").Funcs(funcs).Parse(confirmationHTML)),
		text:   texttemplate.Must(texttemplate.New("confirmation.txt").Funcs(funcs).Parse(confirmationText)),
		log:    log.Named("confirmation"),
	}
}

// Handle is an events.Handler. Events other than order.placed are ignored.
func (c *OrderConfirmation) Handle(ctx context.Context, eventType string, event domain.OrderEvent) error {
	if eventType != domain.EventOrderPlaced {
		return nil
	}
	log := logger.FromContext(ctx, c.log).With(zap.String("order_id", event.OrderID))
	if event.CustomerEmail == "" {
		log.Warn("order has no customer email, skipping confirmation")
		return nil
	}

	msg, err := c.Render(event)
	if err != nil {
		return err
	}
	if err := c.mailer.Send(ctx, msg); err != nil {
		log.Error("failed to send order confirmation", zap.Error(err))
		return err
	}
	log.Info("order confirmation sent")
	return nil
}

func (c *OrderConfirmation) Render(event domain.OrderEvent) (Message, error) {
	var html, text bytes.Buffer
	if err := c.html.Execute(&html, event); err != nil {
		return Message{}, fmt.Errorf("render confirmation html: %w", err)
	}
	if err := c.text.Execute(&text, event); err != nil {
		return Message{}, fmt.Errorf("render confirmation text: %w", err)
	}
	return Message{
		To:      event.CustomerEmail,
		Subject: "Order Confirmation " + shortID(event.OrderID),
		HTML:    html.String(),
		Text:    text.String(),
		Tag:     "order-confirmation",
	}, nil
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return "#" + strings.ToUpper(id[:i])
	}
	return "#" + id
}
