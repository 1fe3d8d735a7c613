package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterloft/posterloft-backend/internal/catalog"
	"github.com/posterloft/posterloft-backend/internal/fulfillment"
	"github.com/posterloft/posterloft-backend/internal/payments"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
)

type recordingCreator struct {
	requests []payments.CheckoutRequest
}

func (r *recordingCreator) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	r.requests = append(r.requests, req)
	return &payments.CheckoutSession{ID: "cs_test", URL: "https://checkout.test/cs_test"}, nil
}

type skuAdapter struct {
	resolver *fulfillment.SkuResolver
}

func (a skuAdapter) ResolveSKU(paper, size string) (string, bool) {
	return a.resolver.Resolve(paper, size)
}

func newTestService(t *testing.T, creator *recordingCreator, withSKUs bool) Service {
	t.Helper()
	reader, err := catalog.Load("")
	require.NoError(t, err)
	var skus skuResolver
	if withSKUs {
		skus = skuAdapter{resolver: fulfillment.NewSkuResolver(nil)}
	}
	svc, err := NewService(reader, creator, skus)
	require.NoError(t, err)
	return svc
}

func TestCreateSessionPricesFromCatalog(t *testing.T) {
	creator := &recordingCreator{}
	svc := newTestService(t, creator, true)

	out, err := svc.CreateSession(context.Background(), SessionInput{
		CatalogItemID: "midnight-harbor",
		Size:          "18x24",
		Paper:         "Standard",
		CustomerEmail: " ada@example.com ",
		AccountID:     "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test", out.ID)

	require.Len(t, creator.requests, 1)
	req := creator.requests[0]
	assert.Equal(t, "49", req.Amount.String())
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "standard", req.Paper)
	assert.Equal(t, DefaultLayoutMode, req.LayoutMode)
	assert.Equal(t, "ada@example.com", req.CustomerEmail)
	assert.Equal(t, "user-1", req.AccountID)
	assert.Equal(t, "https://assets.posterloft.shop/prints/midnight-harbor.png", req.PrintAssetURL)
}

func TestCreateSessionRejectsUnknownItemsAndVariants(t *testing.T) {
	creator := &recordingCreator{}
	svc := newTestService(t, creator, true)

	_, err := svc.CreateSession(context.Background(), SessionInput{CatalogItemID: "nope", Size: "18x24", Paper: "standard"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.CreateSession(context.Background(), SessionInput{CatalogItemID: "city-grid", Size: "24x36", Paper: "standard"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateSession(context.Background(), SessionInput{CatalogItemID: "midnight-harbor", Size: "24x36", Paper: "fineart"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.Empty(t, creator.requests)
}

func TestCreateSessionWithoutSKUCheckSellsUnmappedVariant(t *testing.T) {
	creator := &recordingCreator{}
	svc := newTestService(t, creator, false)

	_, err := svc.CreateSession(context.Background(), SessionInput{CatalogItemID: "midnight-harbor", Size: "24x36", Paper: "fineart", LayoutMode: "border"})
	require.NoError(t, err)
	require.Len(t, creator.requests, 1)
	assert.Equal(t, "border", creator.requests[0].LayoutMode)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, &recordingCreator{}, nil)
	assert.Error(t, err)
	reader, _ := catalog.Load("")
	_, err = NewService(reader, nil, nil)
	assert.Error(t, err)
}
