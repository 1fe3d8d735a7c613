package fulfillment

import (
	"context"
	"errors"
	"strings"

	"github.com/posterloft/posterloft-backend/pkg/prodigi"
	"github.com/posterloft/posterloft-backend/pkg/types"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, req prodigi.CreateOrderRequest) (*prodigi.CreateOrderResponse, error)
}

// Recipient is who the print ships to.
type Recipient struct {
	Name    string
	Email   string
	Address types.ShippingAddress
}

// Item is one printed poster.
type Item struct {
	SKU      string
	AssetURL string
	Copies   int
}

// SubmitRequest describes a single fulfillment submission.
type SubmitRequest struct {
	MerchantReference string
	Recipient         Recipient
	Items             []Item
}

// SubmitResult carries the provider-side order id.
type SubmitResult struct {
	ProviderOrderID string
	Outcome         string
}

// Gateway submits print jobs to Prodigi. It never retries.
type Gateway struct {
	client         orderCreator
	skus           *SkuResolver
	shippingMethod string
}

// NewGateway wires the provider client and SKU resolver.
func NewGateway(client orderCreator, skus *SkuResolver, shippingMethod string) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("fulfillment client required")
	}
	if skus == nil {
		skus = NewSkuResolver(nil)
	}
	return &Gateway{client: client, skus: skus, shippingMethod: strings.TrimSpace(shippingMethod)}, nil
}

// ResolveSKU maps paper and size to a provider SKU.
func (g *Gateway) ResolveSKU(paper, size string) (string, bool) {
	return g.skus.Resolve(paper, size)
}

// Submit creates the provider order. Failures are *RejectedError or *UnavailableError.
func (g *Gateway) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if strings.TrimSpace(req.MerchantReference) == "" {
		return SubmitResult{}, &RejectedError{Reason: "merchant reference is required"}
	}
	if len(req.Items) == 0 {
		return SubmitResult{}, &RejectedError{Reason: "at least one item is required"}
	}

	addr := req.Recipient.Address
	payload := prodigi.CreateOrderRequest{
		MerchantReference: req.MerchantReference,
		IdempotencyKey:    req.MerchantReference,
		ShippingMethod:    g.shippingMethod,
		Recipient: prodigi.Recipient{
			Name:        recipientName(req.Recipient),
			Email:       req.Recipient.Email,
			PhoneNumber: addr.Phone,
			Address: prodigi.Address{
				Line1:           addr.Line1,
				Line2:           addr.Line2,
				PostalOrZipCode: addr.PostalCode,
				CountryCode:     strings.ToUpper(addr.Country),
				TownOrCity:      addr.City,
				StateOrCounty:   addr.State,
			},
		},
	}
	for _, item := range req.Items {
		payload.Items = append(payload.Items, prodigi.Item{
			MerchantReference: req.MerchantReference,
			SKU:               item.SKU,
			Copies:            item.Copies,
			Assets:            []prodigi.Asset{{URL: item.AssetURL}},
		})
	}

	resp, err := g.client.CreateOrder(ctx, payload)
	if err != nil {
		return SubmitResult{}, classify(err)
	}
	if resp == nil || resp.Order == nil || resp.Order.ID == "" {
		return SubmitResult{}, &UnavailableError{Err: errors.New("provider response missing order id")}
	}
	return SubmitResult{ProviderOrderID: resp.Order.ID, Outcome: resp.Outcome}, nil
}

func classify(err error) error {
	var apiErr *prodigi.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Temporary() {
			return &UnavailableError{Err: err}
		}
		reason := apiErr.Outcome
		if summary := failureSummary(failureCodes(apiErr.Failures)); summary != "" {
			reason = strings.TrimSpace(reason + " " + summary)
		}
		if reason == "" {
			reason = apiErr.Error()
		}
		return &RejectedError{StatusCode: apiErr.StatusCode, Reason: reason, Err: err}
	}
	return &UnavailableError{Err: err}
}

func failureCodes(failures map[string][]prodigi.Failure) map[string][]string {
	out := make(map[string][]string, len(failures))
	for field, list := range failures {
		for _, f := range list {
			out[field] = append(out[field], f.Code)
		}
	}
	return out
}

func recipientName(r Recipient) string {
	if name := strings.TrimSpace(r.Address.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return "Customer"
}
