package prodigiwebhook

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/posterloft/posterloft-backend/internal/orders"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
	"github.com/posterloft/posterloft-backend/pkg/prodigi"
)

type fulfillmentLifecycle interface {
	OnFulfillmentEvent(ctx context.Context, evt orders.FulfillmentStatusChanged) (orders.FulfillmentResult, error)
}

type ServiceParams struct {
	Lifecycle fulfillmentLifecycle
	Verifier  *SignatureVerifier
	Logger    *logger.Logger
}

// Service applies Prodigi status callbacks to orders.
type Service struct {
	lifecycle fulfillmentLifecycle
	verifier  *SignatureVerifier
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Lifecycle == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order lifecycle required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "prodigi-webhook", Output: io.Discard})
	}
	verifier := params.Verifier
	if verifier == nil {
		verifier = NewSignatureVerifier("", false)
	}
	return &Service{lifecycle: params.Lifecycle, verifier: verifier, logg: logg}, nil
}

// HandleCallback authenticates and decodes a raw callback body, then hands the
// status change to the lifecycle. Unknown orders are not an error.
func (s *Service) HandleCallback(ctx context.Context, payload []byte, signature string) (orders.FulfillmentResult, error) {
	if err := s.verifier.Verify(payload, signature); err != nil {
		return orders.FulfillmentResult{}, err
	}

	callback, err := prodigi.ParseCallback(payload)
	if err != nil {
		return orders.FulfillmentResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed fulfillment callback")
	}
	order := callback.OrderPayload()
	if order == nil {
		return orders.FulfillmentResult{}, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment callback carries no order")
	}

	evt := StatusChangeFromOrder(order)
	if evt.ProviderOrderID == "" && evt.MerchantReference == "" {
		return orders.FulfillmentResult{}, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment order id or merchant reference required")
	}
	if callback.ID != "" {
		ctx = s.logg.WithField(ctx, "callback_id", callback.ID)
	}
	if callback.Type != "" {
		s.logg.Info(ctx, fmt.Sprintf("fulfillment callback %s for %s", callback.Type, evt.ProviderOrderID))
	}

	return s.lifecycle.OnFulfillmentEvent(ctx, evt)
}

// StatusChangeFromOrder maps a Prodigi order resource onto a lifecycle event.
func StatusChangeFromOrder(order *prodigi.Order) orders.FulfillmentStatusChanged {
	evt := orders.FulfillmentStatusChanged{
		ProviderOrderID:   strings.TrimSpace(order.ID),
		MerchantReference: strings.TrimSpace(order.MerchantReference),
		RawStatus:         optional(order.RawStatus()),
	}
	if shipment := order.LatestShipment(); shipment != nil {
		evt.TrackingNumber = optional(shipment.Tracking.Number)
		evt.TrackingURL = optional(shipment.Tracking.URL)
		evt.ShippedAt = shipment.DispatchedAt()
	}
	return evt
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
