package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/posterloft/posterloft-backend/pkg/config"
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Message is a single transactional email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
	Category  string
}

// Client sends transactional email through SendGrid's v3 API.
type Client struct {
	api      sender
	fromName string
	from     string
}

// NewClient builds a client from configuration.
func NewClient(cfg config.SendgridConfig) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	return newClient(sg.NewSendClient(key), cfg)
}

func newClient(api sender, cfg config.SendgridConfig) (*Client, error) {
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errors.New("sendgrid from address is required")
	}
	return &Client{api: api, from: from, fromName: strings.TrimSpace(cfg.FromName)}, nil
}

// Send delivers msg. Any non-2xx response is returned as an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.api == nil {
		return errors.New("sendgrid client not configured")
	}
	if strings.TrimSpace(msg.ToEmail) == "" {
		return errors.New("recipient email is required")
	}

	email := mail.NewSingleEmail(
		mail.NewEmail(c.fromName, c.from),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.ToEmail),
		msg.PlainText,
		msg.HTML,
	)
	if msg.Category != "" {
		email.AddCategories(msg.Category)
	}

	resp, err := c.api.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp == nil {
		return errors.New("sendgrid send: empty response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	return nil
}
