package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/posterloft/posterloft-backend/internal/catalog"
	"github.com/posterloft/posterloft-backend/internal/payments"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
)

type catalogReader interface {
	FindByID(id string) (*catalog.Item, bool)
}

type sessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error)
}

type skuResolver interface {
	ResolveSKU(paper, size string) (string, bool)
}

// Service opens payment sessions for catalog prints.
type Service interface {
	CreateSession(ctx context.Context, input SessionInput) (*payments.CheckoutSession, error)
}

// SessionInput is one print purchase. AccountID is empty for guests.
type SessionInput struct {
	CatalogItemID string
	Size          string
	Paper         string
	LayoutMode    string
	CustomerEmail string
	AccountID     string
}

type service struct {
	catalog  catalogReader
	payments sessionCreator
	skus     skuResolver
}

// NewService builds the checkout service. skus may be nil, in which case
// unmapped variants are sold and land in paid_missing_sku.
func NewService(reader catalogReader, creator sessionCreator, skus skuResolver) (Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if creator == nil {
		return nil, fmt.Errorf("payment session creator required")
	}
	return &service{catalog: reader, payments: creator, skus: skus}, nil
}

func (s *service) CreateSession(ctx context.Context, input SessionInput) (*payments.CheckoutSession, error) {
	item, ok := s.catalog.FindByID(input.CatalogItemID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "catalog item not found")
	}

	price, ok := item.Price(input.Paper, input.Size)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant not offered for this print").
			WithDetails(map[string]any{"paper": input.Paper, "size": input.Size})
	}
	if s.skus != nil {
		if _, ok := s.skus.ResolveSKU(input.Paper, input.Size); !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant cannot be printed").
				WithDetails(map[string]any{"paper": input.Paper, "size": input.Size})
		}
	}

	layout := strings.TrimSpace(input.LayoutMode)
	if layout == "" {
		layout = DefaultLayoutMode
	}

	return s.payments.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		CatalogItemID: item.ID,
		Title:         item.Title,
		Size:          strings.TrimSpace(input.Size),
		Paper:         strings.ToLower(strings.TrimSpace(input.Paper)),
		LayoutMode:    layout,
		PrintAssetURL: item.PrintAssetURL,
		Amount:        price,
		Currency:      item.Currency,
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		AccountID:     strings.TrimSpace(input.AccountID),
	})
}

// DefaultLayoutMode is used when the client does not pick one.
const DefaultLayoutMode = "fill"
