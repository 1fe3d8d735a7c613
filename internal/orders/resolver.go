package orders

import (
	"context"
	"strings"

	"github.com/posterloft/posterloft-backend/pkg/db/models"
)

// DefaultMerchantReferencePrefix is prepended to the payment session id to
// build the reference echoed back by the fulfillment provider.
const DefaultMerchantReferencePrefix = "stripe-"

// MerchantReference builds the fulfillment merchant reference for a session.
func MerchantReference(prefix, sessionID string) string {
	return prefix + sessionID
}

// SessionIDFromMerchantReference strips prefix from ref. It reports false
// when ref does not carry the prefix or nothing follows it.
func SessionIDFromMerchantReference(prefix, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if prefix == "" || !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	sessionID := strings.TrimPrefix(ref, prefix)
	if sessionID == "" {
		return "", false
	}
	return sessionID, true
}

type lookupFunc func(ctx context.Context, repo Repository, evt FulfillmentStatusChanged) (*models.Order, error)

type keyStrategy struct {
	name   string
	lookup lookupFunc
}

// OrderResolver finds the order a fulfillment event refers to by trying each
// strategy in order; the first hit wins.
type OrderResolver struct {
	repo       Repository
	strategies []keyStrategy
}

// NewOrderResolver builds the resolver with the standard precedence:
// provider order id, session id parsed from the merchant reference, then the
// merchant reference taken verbatim as a session id.
func NewOrderResolver(repo Repository, prefix string) *OrderResolver {
	return &OrderResolver{
		repo: repo,
		strategies: []keyStrategy{
			{name: "fulfillment_order_id", lookup: byProviderOrderID},
			{name: "merchant_reference", lookup: byMerchantReference(prefix)},
			{name: "raw_merchant_reference", lookup: byRawMerchantReference},
		},
	}
}

// Resolve returns the matching order and the strategy that found it, or a
// nil order when none match.
func (r *OrderResolver) Resolve(ctx context.Context, evt FulfillmentStatusChanged) (*models.Order, string, error) {
	for _, strategy := range r.strategies {
		order, err := strategy.lookup(ctx, r.repo, evt)
		if err != nil {
			return nil, strategy.name, err
		}
		if order != nil {
			return order, strategy.name, nil
		}
	}
	return nil, "", nil
}

func byProviderOrderID(ctx context.Context, repo Repository, evt FulfillmentStatusChanged) (*models.Order, error) {
	id := strings.TrimSpace(evt.ProviderOrderID)
	if id == "" {
		return nil, nil
	}
	return repo.FindByFulfillmentOrderID(ctx, id)
}

func byMerchantReference(prefix string) lookupFunc {
	return func(ctx context.Context, repo Repository, evt FulfillmentStatusChanged) (*models.Order, error) {
		sessionID, ok := SessionIDFromMerchantReference(prefix, evt.MerchantReference)
		if !ok {
			return nil, nil
		}
		return repo.FindByPaymentSessionID(ctx, sessionID)
	}
}

func byRawMerchantReference(ctx context.Context, repo Repository, evt FulfillmentStatusChanged) (*models.Order, error) {
	ref := strings.TrimSpace(evt.MerchantReference)
	if ref == "" {
		return nil, nil
	}
	return repo.FindByPaymentSessionID(ctx, ref)
}
