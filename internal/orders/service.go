package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/posterloft/posterloft-backend/internal/fulfillment"
	"github.com/posterloft/posterloft-backend/pkg/db/models"
	"github.com/posterloft/posterloft-backend/pkg/enums"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

// FulfillmentGateway resolves SKUs and submits print jobs.
type FulfillmentGateway interface {
	ResolveSKU(paper, size string) (string, bool)
	Submit(ctx context.Context, req fulfillment.SubmitRequest) (fulfillment.SubmitResult, error)
}

// Notifier sends customer emails. Implementations are best-effort.
type Notifier interface {
	NotifyOrderReceived(ctx context.Context, order *models.Order) error
	NotifyShipped(ctx context.Context, order *models.Order, tracking Tracking) error
}

type lifecycleMetrics interface {
	IncTransition(from, to string)
	IncSubmission(outcome string)
	IncNotification(kind, outcome string)
}

// Lifecycle drives an order from payment confirmation to shipment.
type Lifecycle interface {
	OnPaymentConfirmed(ctx context.Context, evt PaymentConfirmed) (*models.Order, error)
	OnFulfillmentEvent(ctx context.Context, evt FulfillmentStatusChanged) (FulfillmentResult, error)
	RetrySubmission(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// LifecycleParams wires the lifecycle's collaborators.
type LifecycleParams struct {
	Repo              Repository
	Gateway           FulfillmentGateway
	Notifier          Notifier
	Metrics           lifecycleMetrics
	Logger            *logger.Logger
	MerchantRefPrefix string
	Now               func() time.Time
}

type lifecycle struct {
	repo     Repository
	gateway  FulfillmentGateway
	notifier Notifier
	metrics  lifecycleMetrics
	logg     *logger.Logger
	resolver *OrderResolver
	prefix   string
	now      func() time.Time
}

const (
	notificationShipped  = "shipped"
	notificationReceived = "order_received"
)

// NewLifecycle builds the order lifecycle with the required dependencies.
func NewLifecycle(params LifecycleParams) (Lifecycle, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("fulfillment gateway required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "orders", Output: io.Discard})
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	prefix := params.MerchantRefPrefix
	if prefix == "" {
		prefix = DefaultMerchantReferencePrefix
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &lifecycle{
		repo:     params.Repo,
		gateway:  params.Gateway,
		notifier: params.Notifier,
		metrics:  metrics,
		logg:     logg,
		resolver: NewOrderResolver(params.Repo, prefix),
		prefix:   prefix,
		now:      now,
	}, nil
}

// OnPaymentConfirmed records the order for a paid session and submits it for
// printing. The row is committed as pending_submission before the provider is
// called, so a redelivered event finds it and never submits twice.
func (l *lifecycle) OnPaymentConfirmed(ctx context.Context, evt PaymentConfirmed) (*models.Order, error) {
	sessionID := strings.TrimSpace(evt.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session id required")
	}
	ctx = l.logg.WithSessionID(ctx, sessionID)

	existing, err := l.repo.FindByPaymentSessionID(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order by payment session")
	}
	if existing != nil {
		l.logg.Info(ctx, "payment already recorded; skipping")
		return existing, nil
	}

	if missing := missingPurchaseFields(evt.Purchase); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session is missing purchase metadata").
			WithDetails(map[string]any{"missing": missing})
	}

	order := newOrder(sessionID, evt)
	var sku string
	switch {
	case !evt.ShippingAddress.IsShippable():
		order.Status = enums.OrderStatusPaidMissingShipping
	default:
		resolved, ok := l.gateway.ResolveSKU(order.Paper, order.Size)
		if !ok {
			order.Status = enums.OrderStatusPaidMissingSKU
		} else {
			sku = resolved
			order.Status = enums.OrderStatusPendingSubmission
		}
	}

	res, err := l.repo.InsertIfAbsent(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert order")
	}
	if !res.Created {
		l.logg.Info(ctx, "concurrent delivery already recorded the order")
		return res.Order, nil
	}

	order = res.Order
	ctx = l.logg.WithOrderID(ctx, order.ID.String())
	l.metrics.IncTransition("new", order.Status.String())
	l.notify(ctx, notificationReceived, func() error { return l.notifier.NotifyOrderReceived(ctx, order) })

	switch order.Status {
	case enums.OrderStatusPaidMissingShipping:
		l.logg.Warn(ctx, fmt.Sprintf("order recorded without a shippable address (missing %s)", strings.Join(evt.ShippingAddress.MissingFields(), ", ")))
		return order, nil
	case enums.OrderStatusPaidMissingSKU:
		l.logg.Warn(ctx, fmt.Sprintf("order recorded without a fulfillment sku for %s/%s", order.Paper, order.Size))
		return order, nil
	}

	return l.submit(ctx, order, sku)
}

// RetrySubmission re-drives fulfillment for an order that never reached the
// provider.
func (l *lifecycle) RetrySubmission(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = l.logg.WithOrderID(ctx, orderID.String())

	order, err := l.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.FulfillmentOrderID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already submitted to fulfillment")
	}
	if !order.Status.AwaitingSubmission() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %s cannot be resubmitted", order.Status))
	}
	if !order.ShippingAddress.IsShippable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no shippable address")
	}
	sku, ok := l.gateway.ResolveSKU(order.Paper, order.Size)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no fulfillment sku for order variant")
	}

	reset, transition, err := l.repo.ResetForResubmission(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset order for resubmission")
	}
	if !transition.Applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed while preparing resubmission")
	}
	l.recordTransition(transition)

	return l.submit(ctx, reset, sku)
}

func (l *lifecycle) submit(ctx context.Context, order *models.Order, sku string) (*models.Order, error) {
	req := fulfillment.SubmitRequest{
		MerchantReference: MerchantReference(l.prefix, order.PaymentSessionID),
		Recipient: fulfillment.Recipient{
			Name:    derefString(order.CustomerName),
			Email:   order.RecipientEmail(),
			Address: *order.ShippingAddress,
		},
		Items: []fulfillment.Item{{
			SKU:      sku,
			AssetURL: order.PrintAssetURL,
			Copies:   1,
		}},
	}

	result, submitErr := l.gateway.Submit(ctx, req)
	outcome := SubmissionOutcome{ProviderOrderID: result.ProviderOrderID}
	if submitErr != nil {
		outcome = SubmissionOutcome{FailureReason: submitErr.Error()}
	}

	updated, transition, err := l.repo.RecordSubmission(ctx, order.ID, outcome)
	if err != nil {
		if submitErr != nil {
			l.logg.Error(ctx, "fulfillment submission failed", submitErr)
		}
		return nil, storeError(err, "record fulfillment submission", result.ProviderOrderID)
	}
	l.recordTransition(transition)

	if submitErr != nil {
		gatewayErr := gatewayError(submitErr)
		l.metrics.IncSubmission(strings.ToLower(string(gatewayErr.Code())))
		l.logg.Error(ctx, "fulfillment submission failed", submitErr)
		return updated, gatewayErr
	}

	l.metrics.IncSubmission("accepted")
	l.logg.Info(l.logg.WithField(ctx, "fulfillment_order_id", result.ProviderOrderID), "order submitted to fulfillment")
	return updated, nil
}

// OnFulfillmentEvent applies a provider status callback. Events that match no
// order are acknowledged without mutation.
func (l *lifecycle) OnFulfillmentEvent(ctx context.Context, evt FulfillmentStatusChanged) (FulfillmentResult, error) {
	if strings.TrimSpace(evt.ProviderOrderID) == "" && strings.TrimSpace(evt.MerchantReference) == "" {
		return FulfillmentResult{}, pkgerrors.New(pkgerrors.CodeValidation, "provider order id or merchant reference required")
	}

	order, strategy, err := l.resolver.Resolve(ctx, evt)
	if err != nil {
		return FulfillmentResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve order for fulfillment event")
	}
	if order == nil {
		l.logg.Info(l.logg.WithFields(ctx, map[string]any{
			"fulfillment_order_id": evt.ProviderOrderID,
			"merchant_reference":   evt.MerchantReference,
		}), "fulfillment event matched no order; acknowledging")
		return FulfillmentResult{Matched: false}, nil
	}
	ctx = l.logg.WithFields(l.logg.WithOrderID(ctx, order.ID.String()), map[string]any{"resolved_by": strategy})

	shippedLike := IsShippedLike(evt.RawStatus)
	patch := FulfillmentPatch{
		FulfillmentOrderID: nonEmpty(evt.ProviderOrderID),
		FulfillmentStatus:  trimmedPtr(evt.RawStatus),
		TrackingNumber:     trimmedPtr(evt.TrackingNumber),
		TrackingURL:        trimmedPtr(evt.TrackingURL),
		ShippedAt:          evt.ShippedAt,
	}
	switch {
	case shippedLike:
		status := enums.OrderStatusShipped
		patch.Status = &status
	case patch.FulfillmentStatus != nil:
		status := enums.OrderStatusInProduction
		patch.Status = &status
	}

	updated, transition, err := l.repo.ApplyFulfillmentUpdate(ctx, order.ID, patch)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return FulfillmentResult{Matched: false}, nil
		}
		return FulfillmentResult{}, storeError(err, "apply fulfillment update", evt.ProviderOrderID)
	}
	l.recordTransition(transition)
	if patch.Status != nil && !transition.Applied {
		l.logg.Info(ctx, fmt.Sprintf("ignored status move %s -> %s", transition.From, *patch.Status))
	}

	result := FulfillmentResult{
		Matched:     true,
		Order:       updated,
		Transition:  transition,
		ShippedLike: shippedLike,
	}
	if !shippedLike || updated.Status != enums.OrderStatusShipped || !hasTracking(updated) {
		return result, nil
	}

	first, err := l.repo.MarkShippedNotificationSent(ctx, updated.ID, l.now())
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flag shipped notification")
	}
	if !first {
		return result, nil
	}
	tracking := Tracking{Number: derefString(updated.TrackingNumber), URL: derefString(updated.TrackingURL)}
	result.NotificationSent = l.notify(ctx, notificationShipped, func() error { return l.notifier.NotifyShipped(ctx, updated, tracking) })
	return result, nil
}

func (l *lifecycle) notify(ctx context.Context, kind string, send func() error) bool {
	if err := send(); err != nil {
		l.metrics.IncNotification(kind, "failed")
		l.logg.Error(ctx, fmt.Sprintf("%s notification failed", kind), err)
		return false
	}
	l.metrics.IncNotification(kind, "sent")
	return true
}

func (l *lifecycle) recordTransition(t enums.StatusTransition) {
	if t.Changed() {
		l.metrics.IncTransition(t.From.String(), t.To.String())
	}
}

// IsShippedLike reports whether a provider status means the parcel left the
// production site.
func IsShippedLike(raw *string) bool {
	if raw == nil {
		return false
	}
	status := strings.ToLower(*raw)
	return strings.Contains(status, "ship") || strings.Contains(status, "dispatch")
}

// storeError turns a duplicate provider order id into a state conflict;
// anything else from the store is internal.
func storeError(err error, action, providerOrderID string) *pkgerrors.Error {
	if errors.Is(err, ErrFulfillmentOrderConflict) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "fulfillment order id already belongs to another order").
			WithDetails(map[string]any{"fulfillment_order_id": providerOrderID})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func gatewayError(err error) *pkgerrors.Error {
	var rejected *fulfillment.RejectedError
	if errors.As(err, &rejected) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayRejected, err, "fulfillment provider rejected the order").
			WithDetails(map[string]any{"reason": rejected.Reason})
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "fulfillment provider unavailable")
}

func newOrder(sessionID string, evt PaymentConfirmed) *models.Order {
	p := evt.Purchase
	order := &models.Order{
		ID:               uuid.New(),
		PaymentSessionID: sessionID,
		CustomerEmail:    nonEmpty(p.CustomerEmail),
		CustomerName:     nonEmpty(p.CustomerName),
		AccountID:        nonEmpty(p.AccountID),
		CatalogItemID:    strings.TrimSpace(p.CatalogItemID),
		Size:             strings.TrimSpace(p.Size),
		Paper:            strings.TrimSpace(p.Paper),
		LayoutMode:       strings.TrimSpace(p.LayoutMode),
		PrintAssetURL:    strings.TrimSpace(p.PrintAssetURL),
		Currency:         strings.ToLower(strings.TrimSpace(p.Currency)),
		AmountTotal:      p.AmountTotal,
	}
	if evt.ShippingAddress != nil {
		addr := *evt.ShippingAddress
		order.ShippingAddress = &addr
	}
	return order
}

func missingPurchaseFields(p PurchaseDetails) []string {
	var missing []string
	if strings.TrimSpace(p.CatalogItemID) == "" {
		missing = append(missing, "catalog_item_id")
	}
	if strings.TrimSpace(p.Size) == "" {
		missing = append(missing, "size")
	}
	if strings.TrimSpace(p.Paper) == "" {
		missing = append(missing, "paper")
	}
	if strings.TrimSpace(p.PrintAssetURL) == "" {
		missing = append(missing, "print_asset_url")
	}
	return missing
}

func hasTracking(order *models.Order) bool {
	return derefString(order.TrackingNumber) != "" || derefString(order.TrackingURL) != ""
}

func nonEmpty(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return nonEmpty(*value)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

type noopMetrics struct{}

func (noopMetrics) IncTransition(string, string)   {}
func (noopMetrics) IncSubmission(string)           {}
func (noopMetrics) IncNotification(string, string) {}
