package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/types"
)

// Metadata keys written on checkout sessions and read back on payment.
const (
	MetadataCatalogItemID = "catalog_item_id"
	MetadataSize          = "size"
	MetadataPaper         = "paper"
	MetadataLayoutMode    = "layout_mode"
	MetadataPrintAssetURL = "print_asset_url"
	MetadataAccountID     = "account_id"
)

// SessionAPI is the subset of the Stripe Checkout Session API the gateway uses.
type SessionAPI interface {
	GetCheckoutSession(ctx context.Context, id string, params *stripe.CheckoutSessionRetrieveParams) (*stripe.CheckoutSession, error)
	NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

// Session is a retrieved checkout session reduced to what order creation needs.
type Session struct {
	ID              string
	PaymentStatus   string
	Metadata        map[string]string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress *types.ShippingAddress
	AmountTotal     decimal.Decimal
	Currency        string
}

// Paid reports whether funds were captured or no payment was required.
func (s *Session) Paid() bool {
	if s == nil {
		return false
	}
	switch stripe.CheckoutSessionPaymentStatus(s.PaymentStatus) {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true
	default:
		return false
	}
}

// CheckoutRequest describes a single-print checkout.
type CheckoutRequest struct {
	CatalogItemID string
	Title         string
	Size          string
	Paper         string
	LayoutMode    string
	PrintAssetURL string
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	AccountID     string
}

// CheckoutSession is the hosted payment page handed back to the client.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// GatewayParams configures the Stripe payment gateway.
type GatewayParams struct {
	API               SessionAPI
	SigningSecret     string
	SuccessURL        string
	CancelURL         string
	ShippingCountries []string
}

// Gateway adapts Stripe Checkout to the order flow.
type Gateway struct {
	api               SessionAPI
	signingSecret     string
	successURL        string
	cancelURL         string
	shippingCountries []string
}

func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe session api required")
	}
	if strings.TrimSpace(params.SigningSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe signing secret required")
	}
	countries := make([]string, 0, len(params.ShippingCountries))
	for _, country := range params.ShippingCountries {
		if trimmed := strings.ToUpper(strings.TrimSpace(country)); trimmed != "" {
			countries = append(countries, trimmed)
		}
	}
	return &Gateway{
		api:               params.API,
		signingSecret:     strings.TrimSpace(params.SigningSecret),
		successURL:        params.SuccessURL,
		cancelURL:         params.CancelURL,
		shippingCountries: countries,
	}, nil
}

// VerifyWebhookSignature authenticates a raw webhook body. The API version
// check is skipped because sessions are re-read through the API.
func (g *Gateway) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if strings.TrimSpace(signature) == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify stripe signature")
	}
	return event, nil
}

// RetrieveSession loads a checkout session from Stripe.
func (g *Gateway) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	sess, err := g.api.GetCheckoutSession(ctx, id, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return nil, classifyStripeError(err, "retrieve checkout session")
	}
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "stripe returned no checkout session")
	}
	return mapSession(sess), nil
}

// CreateCheckoutSession opens a hosted payment page for one print. The
// purchase description travels in session metadata so the payment webhook can
// rebuild the order.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout amount must be positive")
	}
	if !SupportedCurrency(currency) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported checkout currency").WithDetails(map[string]any{
			"currency": currency,
		})
	}
	if len(g.shippingCountries) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no shipping countries configured for checkout")
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(ToMinorUnits(req.Amount, currency)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(productName(req)),
					},
				},
			},
		},
		ShippingAddressCollection: &stripe.CheckoutSessionCreateShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(g.shippingCountries),
		},
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if accountID := strings.TrimSpace(req.AccountID); accountID != "" {
		params.ClientReferenceID = stripe.String(accountID)
		params.AddMetadata(MetadataAccountID, accountID)
	}
	params.AddMetadata(MetadataCatalogItemID, req.CatalogItemID)
	params.AddMetadata(MetadataSize, req.Size)
	params.AddMetadata(MetadataPaper, req.Paper)
	params.AddMetadata(MetadataLayoutMode, req.LayoutMode)
	params.AddMetadata(MetadataPrintAssetURL, req.PrintAssetURL)

	sess, err := g.api.NewCheckoutSession(ctx, params)
	if err != nil {
		return nil, classifyStripeError(err, "create checkout session")
	}
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "stripe returned no checkout session")
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func productName(req CheckoutRequest) string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.CatalogItemID
	}
	return strings.TrimSpace(title + " " + req.Size + " " + req.Paper)
}

func mapSession(sess *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      map[string]string{},
		CustomerEmail: sess.CustomerEmail,
		Currency:      strings.ToLower(string(sess.Currency)),
	}
	for key, value := range sess.Metadata {
		out.Metadata[key] = value
	}
	out.AmountTotal = ToMajorUnits(sess.AmountTotal, out.Currency)

	if details := sess.CustomerDetails; details != nil {
		if details.Email != "" {
			out.CustomerEmail = details.Email
		}
		out.CustomerName = details.Name
	}

	// The billing address is never a destination; without collected shipping
	// details the order lands in paid_missing_shipping.
	if info := sess.CollectedInformation; info != nil && info.ShippingDetails != nil && info.ShippingDetails.Address != nil {
		out.ShippingAddress = mapAddress(info.ShippingDetails.Name, info.ShippingDetails.Address)
	}
	return out
}

func mapAddress(name string, addr *stripe.Address) *types.ShippingAddress {
	if addr == nil {
		return nil
	}
	return &types.ShippingAddress{
		Name:       strings.TrimSpace(name),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      strings.TrimSpace(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
	}
}

// classifyStripeError separates requests Stripe refused from transport or
// server-side failures.
func classifyStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429 {
		if stripeErr.HTTPStatusCode == 404 {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, op)
		}
		return pkgerrors.Wrap(pkgerrors.CodeGatewayRejected, err, op).WithDetails(map[string]any{
			"stripe_code": string(stripeErr.Code),
		})
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, op)
}
