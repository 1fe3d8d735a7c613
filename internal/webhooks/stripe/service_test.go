package stripewebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/posterloft/posterloft-backend/internal/catalog"
	"github.com/posterloft/posterloft-backend/internal/orders"
	"github.com/posterloft/posterloft-backend/internal/payments"
	"github.com/posterloft/posterloft-backend/pkg/db/models"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/types"
)

type stubSessions struct {
	session *payments.Session
	err     error
	calls   int
}

func (s *stubSessions) RetrieveSession(ctx context.Context, id string) (*payments.Session, error) {
	s.calls++
	return s.session, s.err
}

type recordingLifecycle struct {
	events []orders.PaymentConfirmed
	err    error
}

func (r *recordingLifecycle) OnPaymentConfirmed(ctx context.Context, evt orders.PaymentConfirmed) (*models.Order, error) {
	r.events = append(r.events, evt)
	return &models.Order{PaymentSessionID: evt.SessionID}, r.err
}

func checkoutEvent(eventType stripe.EventType, sessionID string) *stripe.Event {
	return &stripe.Event{
		ID:   "evt_1",
		Type: eventType,
		Data: &stripe.EventData{Object: map[string]interface{}{"id": sessionID}},
	}
}

func paidSession() *payments.Session {
	return &payments.Session{
		ID:            "cs_1",
		PaymentStatus: "paid",
		Metadata: map[string]string{
			payments.MetadataCatalogItemID: "midnight-harbor",
			payments.MetadataSize:          "18x24",
			payments.MetadataPaper:         "standard",
			payments.MetadataLayoutMode:    "full-bleed",
			payments.MetadataAccountID:     "user-1",
		},
		CustomerEmail:   "ada@example.com",
		CustomerName:    "Ada",
		ShippingAddress: &types.ShippingAddress{Line1: "1 Main", City: "Springfield", PostalCode: "12345", Country: "US"},
		AmountTotal:     decimal.RequireFromString("49"),
		Currency:        "usd",
	}
}

func newTestService(t *testing.T, sessions *stubSessions, lifecycle *recordingLifecycle) *Service {
	t.Helper()
	reader, err := catalog.Load("")
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Sessions: sessions, Catalog: reader, Lifecycle: lifecycle})
	require.NoError(t, err)
	return svc
}

func TestHandleCheckoutCompletedBuildsPaymentConfirmed(t *testing.T) {
	sessions := &stubSessions{session: paidSession()}
	lifecycle := &recordingLifecycle{}
	svc := newTestService(t, sessions, lifecycle)

	require.NoError(t, svc.HandleEvent(context.Background(), checkoutEvent(stripe.EventTypeCheckoutSessionCompleted, "cs_1")))

	require.Len(t, lifecycle.events, 1)
	evt := lifecycle.events[0]
	assert.Equal(t, "cs_1", evt.SessionID)
	assert.Equal(t, "midnight-harbor", evt.Purchase.CatalogItemID)
	assert.Equal(t, "user-1", evt.Purchase.AccountID)
	assert.Equal(t, "https://assets.posterloft.shop/prints/midnight-harbor.png", evt.Purchase.PrintAssetURL)
	assert.True(t, evt.Purchase.AmountTotal.Equal(decimal.RequireFromString("49")))
	require.NotNil(t, evt.ShippingAddress)
	assert.Equal(t, "Springfield", evt.ShippingAddress.City)
}

func TestHandleEventPrefersMetadataAsset(t *testing.T) {
	sess := paidSession()
	sess.Metadata[payments.MetadataPrintAssetURL] = "https://custom.test/print.png"
	lifecycle := &recordingLifecycle{}
	svc := newTestService(t, &stubSessions{session: sess}, lifecycle)

	require.NoError(t, svc.HandleEvent(context.Background(), checkoutEvent(stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, "cs_1")))
	require.Len(t, lifecycle.events, 1)
	assert.Equal(t, "https://custom.test/print.png", lifecycle.events[0].Purchase.PrintAssetURL)
}

func TestHandleEventSkipsUnpaidSessions(t *testing.T) {
	sess := paidSession()
	sess.PaymentStatus = "unpaid"
	lifecycle := &recordingLifecycle{}
	svc := newTestService(t, &stubSessions{session: sess}, lifecycle)

	require.NoError(t, svc.HandleEvent(context.Background(), checkoutEvent(stripe.EventTypeCheckoutSessionCompleted, "cs_1")))
	assert.Empty(t, lifecycle.events)
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	sessions := &stubSessions{session: paidSession()}
	lifecycle := &recordingLifecycle{}
	svc := newTestService(t, sessions, lifecycle)

	require.NoError(t, svc.HandleEvent(context.Background(), checkoutEvent(stripe.EventTypeCustomerCreated, "cus_1")))
	assert.Zero(t, sessions.calls)
	assert.Empty(t, lifecycle.events)
}

func TestHandleEventErrors(t *testing.T) {
	svc := newTestService(t, &stubSessions{session: paidSession()}, &recordingLifecycle{})
	err := svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeCheckoutSessionCompleted})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.HandleEvent(context.Background(), checkoutEvent(stripe.EventTypeCheckoutSessionCompleted, ""))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	retrieveErr := pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "stripe down")
	svc = newTestService(t, &stubSessions{err: retrieveErr}, &recordingLifecycle{})
	err = svc.HandleEvent(context.Background(), checkoutEvent(stripe.EventTypeCheckoutSessionCompleted, "cs_1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayUnavailable))

	lifecycleErr := errors.New("boom")
	svc = newTestService(t, &stubSessions{session: paidSession()}, &recordingLifecycle{err: lifecycleErr})
	err = svc.HandleEvent(context.Background(), checkoutEvent(stripe.EventTypeCheckoutSessionCompleted, "cs_1"))
	assert.ErrorIs(t, err, lifecycleErr)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Lifecycle: &recordingLifecycle{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Sessions: &stubSessions{}})
	assert.Error(t, err)
}

type memoryStore struct {
	keys map[string]time.Duration
	err  error
}

func (m *memoryStore) MarkEvent(ctx context.Context, source, eventID string, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := source + ":" + eventID
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memoryStore) UnmarkEvent(ctx context.Context, source, eventID string) error {
	delete(m.keys, source+":"+eventID)
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	store := &memoryStore{keys: map[string]time.Duration{}}
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe_webhook")
	require.NoError(t, err)

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, time.Hour, store.keys["stripe_webhook:evt_1"])

	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(context.Background(), "evt_1"))
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = guard.CheckAndMark(context.Background(), "")
	assert.Error(t, err)

	_, err = NewIdempotencyGuard(nil, time.Hour, "x")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(store, time.Hour, "")
	assert.Error(t, err)
}
