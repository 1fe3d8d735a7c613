package notifications

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"

	"github.com/posterloft/posterloft-backend/internal/orders"
	"github.com/posterloft/posterloft-backend/pkg/db/models"
	"github.com/posterloft/posterloft-backend/pkg/enums"
	"github.com/posterloft/posterloft-backend/pkg/logger"
	"github.com/posterloft/posterloft-backend/pkg/sendgrid"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

// Dispatcher renders customer emails for order lifecycle events. It does not
// deduplicate; callers decide whether an email is due.
type Dispatcher struct {
	mailer Mailer
	logg   *logger.Logger
	text   *texttemplate.Template
	html   *htmltemplate.Template
}

// NewDispatcher parses the embedded templates. A nil mailer disables delivery.
func NewDispatcher(mailer Mailer, logg *logger.Logger) (*Dispatcher, error) {
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "notifications", Output: io.Discard})
	}
	return &Dispatcher{mailer: mailer, logg: logg, text: text, html: html}, nil
}

type emailView struct {
	Name           string
	Size           string
	Paper          string
	Amount         string
	Currency       string
	OrderRef       string
	TrackingNumber string
	TrackingURL    string
	NeedsAttention bool
}

// NotifyOrderReceived confirms a recorded payment to the customer.
func (d *Dispatcher) NotifyOrderReceived(ctx context.Context, order *models.Order) error {
	view := viewFor(order)
	view.NeedsAttention = order.Status == enums.OrderStatusPaidMissingShipping || order.Status == enums.OrderStatusPaidMissingSKU
	return d.send(ctx, order, "order_received", "We received your Posterloft order", view)
}

// NotifyShipped tells the customer their print is in transit.
func (d *Dispatcher) NotifyShipped(ctx context.Context, order *models.Order, tracking orders.Tracking) error {
	view := viewFor(order)
	view.TrackingNumber = tracking.Number
	view.TrackingURL = tracking.URL
	return d.send(ctx, order, "shipped", "Your Posterloft print has shipped", view)
}

func (d *Dispatcher) send(ctx context.Context, order *models.Order, kind, subject string, view emailView) error {
	if order == nil {
		return fmt.Errorf("%s notification: order is required", kind)
	}
	ctx = d.logg.WithOrderID(ctx, order.ID.String())
	recipient := order.RecipientEmail()
	if recipient == "" {
		d.logg.Info(ctx, fmt.Sprintf("%s notification skipped: no recipient email", kind))
		return nil
	}
	if d.mailer == nil {
		d.logg.Info(ctx, fmt.Sprintf("%s notification skipped: mailer disabled", kind))
		return nil
	}

	var plain, html bytes.Buffer
	if err := d.text.ExecuteTemplate(&plain, kind+".txt.tmpl", view); err != nil {
		return fmt.Errorf("render %s text: %w", kind, err)
	}
	if err := d.html.ExecuteTemplate(&html, kind+".html.tmpl", view); err != nil {
		return fmt.Errorf("render %s html: %w", kind, err)
	}

	return d.mailer.Send(ctx, sendgrid.Message{
		ToEmail:   recipient,
		ToName:    view.Name,
		Subject:   subject,
		PlainText: plain.String(),
		HTML:      html.String(),
		Category:  kind,
	})
}

func viewFor(order *models.Order) emailView {
	if order == nil {
		return emailView{}
	}
	name := "there"
	if order.CustomerName != nil && strings.TrimSpace(*order.CustomerName) != "" {
		name = strings.TrimSpace(*order.CustomerName)
	} else if order.ShippingAddress != nil && strings.TrimSpace(order.ShippingAddress.Name) != "" {
		name = strings.TrimSpace(order.ShippingAddress.Name)
	}
	return emailView{
		Name:     name,
		Size:     order.Size,
		Paper:    order.Paper,
		Amount:   order.AmountTotal.StringFixed(2),
		Currency: strings.ToUpper(order.Currency),
		OrderRef: order.PaymentSessionID,
	}
}
