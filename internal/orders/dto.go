package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/posterloft/posterloft-backend/pkg/db/models"
	"github.com/posterloft/posterloft-backend/pkg/enums"
	"github.com/posterloft/posterloft-backend/pkg/types"
)

// InsertResult reports whether InsertIfAbsent created the row or found the
// one written by an earlier delivery.
type InsertResult struct {
	Created bool
	Order   *models.Order
}

// SubmissionOutcome is the second phase of order creation: exactly one of
// ProviderOrderID or FailureReason is set.
type SubmissionOutcome struct {
	ProviderOrderID string
	FailureReason   string
}

// FulfillmentPatch carries provider-reported fields. Nil fields never
// overwrite stored values.
type FulfillmentPatch struct {
	FulfillmentOrderID *string
	FulfillmentStatus  *string
	TrackingNumber     *string
	TrackingURL        *string
	ShippedAt          *time.Time
	Status             *enums.OrderStatus
}

// PurchaseDetails describes what was bought, taken from the payment session metadata.
type PurchaseDetails struct {
	CatalogItemID string
	Size          string
	Paper         string
	LayoutMode    string
	PrintAssetURL string
	AccountID     string
	CustomerEmail string
	CustomerName  string
	Currency      string
	AmountTotal   decimal.Decimal
}

// PaymentConfirmed is raised once the payment provider reports a paid session.
type PaymentConfirmed struct {
	SessionID       string
	Purchase        PurchaseDetails
	ShippingAddress *types.ShippingAddress
}

// FulfillmentStatusChanged is raised by the fulfillment provider's callbacks.
type FulfillmentStatusChanged struct {
	ProviderOrderID   string
	MerchantReference string
	RawStatus         *string
	TrackingNumber    *string
	TrackingURL       *string
	ShippedAt         *time.Time
}

// Tracking is the carrier information sent with shipment notifications.
type Tracking struct {
	Number string
	URL    string
}

// FulfillmentResult summarises how a fulfillment event was applied.
type FulfillmentResult struct {
	Matched          bool
	Order            *models.Order
	Transition       enums.StatusTransition
	ShippedLike      bool
	NotificationSent bool
}
