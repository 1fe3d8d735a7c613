package stripewebhook

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/posterloft/posterloft-backend/internal/catalog"
	"github.com/posterloft/posterloft-backend/internal/orders"
	"github.com/posterloft/posterloft-backend/internal/payments"
	"github.com/posterloft/posterloft-backend/pkg/db/models"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

type sessionRetriever interface {
	RetrieveSession(ctx context.Context, id string) (*payments.Session, error)
}

type catalogReader interface {
	FindByID(id string) (*catalog.Item, bool)
}

type paymentLifecycle interface {
	OnPaymentConfirmed(ctx context.Context, evt orders.PaymentConfirmed) (*models.Order, error)
}

type ServiceParams struct {
	Sessions  sessionRetriever
	Catalog   catalogReader
	Lifecycle paymentLifecycle
	Logger    *logger.Logger
}

// Service turns verified Stripe events into order lifecycle calls.
type Service struct {
	sessions  sessionRetriever
	catalog   catalogReader
	lifecycle paymentLifecycle
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session retriever required")
	}
	if params.Lifecycle == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lifecycle required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "stripe-webhook", Output: io.Discard})
	}
	return &Service{
		sessions:  params.Sessions,
		catalog:   params.Catalog,
		lifecycle: params.Lifecycle,
		logg:      logg,
	}, nil
}

// HandleEvent processes checkout completion events; every other type is
// acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		s.logg.Info(ctx, fmt.Sprintf("ignoring stripe event type %s", event.Type))
		return nil
	}

	sessionID := event.GetObjectValue("id")
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	ctx = s.logg.WithSessionID(ctx, sessionID)

	sess, err := s.sessions.RetrieveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Paid() {
		s.logg.Info(ctx, fmt.Sprintf("checkout session not paid (%s); waiting for async payment", sess.PaymentStatus))
		return nil
	}

	_, err = s.lifecycle.OnPaymentConfirmed(ctx, s.paymentConfirmed(sess))
	return err
}

func (s *Service) paymentConfirmed(sess *payments.Session) orders.PaymentConfirmed {
	meta := sess.Metadata
	purchase := orders.PurchaseDetails{
		CatalogItemID: strings.TrimSpace(meta[payments.MetadataCatalogItemID]),
		Size:          strings.TrimSpace(meta[payments.MetadataSize]),
		Paper:         strings.TrimSpace(meta[payments.MetadataPaper]),
		LayoutMode:    strings.TrimSpace(meta[payments.MetadataLayoutMode]),
		PrintAssetURL: strings.TrimSpace(meta[payments.MetadataPrintAssetURL]),
		AccountID:     strings.TrimSpace(meta[payments.MetadataAccountID]),
		CustomerEmail: sess.CustomerEmail,
		CustomerName:  sess.CustomerName,
		Currency:      sess.Currency,
		AmountTotal:   sess.AmountTotal,
	}
	if purchase.PrintAssetURL == "" && purchase.CatalogItemID != "" && s.catalog != nil {
		if item, ok := s.catalog.FindByID(purchase.CatalogItemID); ok {
			purchase.PrintAssetURL = item.PrintAssetURL
		}
	}
	return orders.PaymentConfirmed{
		SessionID:       sess.ID,
		Purchase:        purchase,
		ShippingAddress: sess.ShippingAddress,
	}
}
