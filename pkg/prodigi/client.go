package prodigi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.sandbox.prodigi.com/v4.0"

	apiKeyHeader          = "X-API-Key"
	responseBodyReadLimit = 64 * 1024
	defaultRequestTimeout = 15 * time.Second
	outcomeCreated        = "created"
	outcomeCreatedIssues  = "createdwithissues"
	outcomeAlreadyExists  = "alreadyexists"
	defaultItemSizing     = "fillPrintArea"
	defaultAssetPrintArea = "default"
	defaultShippingMethod = "Standard"
)

var errAPIKeyRequired = errors.New("prodigi api key is required")

// Client talks to the Prodigi print API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL, e.g. to target the live environment.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every request made by the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a Prodigi client for the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Address is a Prodigi recipient address.
type Address struct {
	Line1           string `json:"line1"`
	Line2           string `json:"line2,omitempty"`
	PostalOrZipCode string `json:"postalOrZipCode"`
	CountryCode     string `json:"countryCode"`
	TownOrCity      string `json:"townOrCity"`
	StateOrCounty   string `json:"stateOrCounty,omitempty"`
}

// Recipient is the person the print ships to.
type Recipient struct {
	Name        string  `json:"name"`
	Email       string  `json:"email,omitempty"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	Address     Address `json:"address"`
}

// Asset points Prodigi at printable artwork.
type Asset struct {
	PrintArea string `json:"printArea"`
	URL       string `json:"url"`
}

// Item is one line of a Prodigi order.
type Item struct {
	MerchantReference string  `json:"merchantReference,omitempty"`
	SKU               string  `json:"sku"`
	Copies            int     `json:"copies"`
	Sizing            string  `json:"sizing"`
	Assets            []Asset `json:"assets"`
}

// CreateOrderRequest is the payload of POST /Orders.
type CreateOrderRequest struct {
	MerchantReference string            `json:"merchantReference"`
	ShippingMethod    string            `json:"shippingMethod"`
	IdempotencyKey    string            `json:"idempotencyKey,omitempty"`
	Recipient         Recipient         `json:"recipient"`
	Items             []Item            `json:"items"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Status mirrors the order status block in Prodigi responses and callbacks.
type Status struct {
	Stage   string            `json:"stage"`
	Details map[string]string `json:"details,omitempty"`
}

// Tracking is the carrier tracking block of a shipment.
type Tracking struct {
	Number string `json:"number"`
	URL    string `json:"url"`
}

// Shipment is one parcel of an order.
type Shipment struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Tracking     Tracking `json:"tracking"`
	DispatchDate string   `json:"dispatchDate,omitempty"`
	Carrier      struct {
		Name    string `json:"name"`
		Service string `json:"service"`
	} `json:"carrier"`
}

// Order is the order resource returned by Prodigi.
type Order struct {
	ID                string     `json:"id"`
	Created           string     `json:"created,omitempty"`
	MerchantReference string     `json:"merchantReference"`
	ShippingMethod    string     `json:"shippingMethod,omitempty"`
	Status            Status     `json:"status"`
	Shipments         []Shipment `json:"shipments"`
}

// Failure is a single validation problem reported by Prodigi.
type Failure struct {
	Code          string `json:"code"`
	ProvidedValue any    `json:"providedValue,omitempty"`
}

// CreateOrderResponse is the body returned by POST /Orders.
type CreateOrderResponse struct {
	Outcome     string               `json:"outcome"`
	Order       *Order               `json:"order"`
	TraceParent string               `json:"traceParent,omitempty"`
	Failures    map[string][]Failure `json:"failures,omitempty"`
}

// APIError is returned when Prodigi answers with a non-success status or outcome.
type APIError struct {
	StatusCode int
	Outcome    string
	Failures   map[string][]Failure
	Body       string
}

func (e *APIError) Error() string {
	if e.Outcome != "" {
		return fmt.Sprintf("prodigi returned status %d (%s)", e.StatusCode, e.Outcome)
	}
	return fmt.Sprintf("prodigi returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the failure came from Prodigi's side.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// TransportError wraps failures that happened before Prodigi answered.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("prodigi %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CreateOrder submits a print order. Any outcome other than Created,
// CreatedWithIssues or AlreadyExists is reported as *APIError.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if c == nil {
		return nil, errors.New("prodigi client not configured")
	}
	if strings.TrimSpace(req.ShippingMethod) == "" {
		req.ShippingMethod = defaultShippingMethod
	}
	for i := range req.Items {
		if req.Items[i].Copies == 0 {
			req.Items[i].Copies = 1
		}
		if req.Items[i].Sizing == "" {
			req.Items[i].Sizing = defaultItemSizing
		}
		for j := range req.Items[i].Assets {
			if req.Items[i].Assets[j].PrintArea == "" {
				req.Items[i].Assets[j].PrintArea = defaultAssetPrintArea
			}
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal prodigi order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("Orders"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build prodigi order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "create order", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, &TransportError{Op: "read create order response", Err: err}
	}

	var out CreateOrderResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if decodeErr == nil {
			apiErr.Outcome = out.Outcome
			apiErr.Failures = out.Failures
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, &TransportError{Op: "decode create order response", Err: decodeErr}
	}

	switch strings.ToLower(out.Outcome) {
	case outcomeCreated, outcomeCreatedIssues, outcomeAlreadyExists:
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Outcome: out.Outcome, Failures: out.Failures, Body: strings.TrimSpace(string(body))}
	}
	if out.Order == nil || strings.TrimSpace(out.Order.ID) == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Outcome: out.Outcome, Body: "response did not include an order id"}
	}
	return &out, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
