package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/posterloft/posterloft-backend/pkg/db"
	"github.com/posterloft/posterloft-backend/pkg/db/models"
	"github.com/posterloft/posterloft-backend/pkg/enums"
)

var (
	// ErrOrderNotFound is returned by mutations that target a missing row.
	ErrOrderNotFound = errors.New("order not found")
	// ErrFulfillmentOrderConflict means the provider order id is already
	// recorded on a different order.
	ErrFulfillmentOrderConflict = errors.New("fulfillment order id belongs to another order")
)

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}
	return r.findOne(ctx, "payment_session_id = ?", sessionID)
}

func (r *repository) FindByFulfillmentOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	if strings.TrimSpace(providerOrderID) == "" {
		return nil, nil
	}
	return r.findOne(ctx, "fulfillment_order_id = ?", providerOrderID)
}

func (r *repository) findOne(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where(query, args...).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// InsertIfAbsent relies on the payment_session_id unique index: concurrent
// callers race on a single INSERT ... ON CONFLICT DO NOTHING and every loser
// reads back the winner's row.
func (r *repository) InsertIfAbsent(ctx context.Context, order *models.Order) (InsertResult, error) {
	if order == nil {
		return InsertResult{}, errors.New("order is required")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_session_id"}},
			DoNothing: true,
		}).
		Create(order)
	if res.Error != nil {
		return InsertResult{}, res.Error
	}
	if res.RowsAffected == 1 {
		return InsertResult{Created: true, Order: order}, nil
	}

	existing, err := r.FindByPaymentSessionID(ctx, order.PaymentSessionID)
	if err != nil {
		return InsertResult{}, err
	}
	if existing == nil {
		return InsertResult{}, fmt.Errorf("order for session %s conflicted but could not be read back", order.PaymentSessionID)
	}
	return InsertResult{Created: false, Order: existing}, nil
}

func (r *repository) RecordSubmission(ctx context.Context, id uuid.UUID, outcome SubmissionOutcome) (*models.Order, enums.StatusTransition, error) {
	providerID := strings.TrimSpace(outcome.ProviderOrderID)
	if providerID == "" && strings.TrimSpace(outcome.FailureReason) == "" {
		return nil, enums.StatusTransition{}, errors.New("submission outcome requires a provider order id or a failure reason")
	}

	return r.mutate(ctx, id, func(order *models.Order, changes map[string]any) enums.StatusTransition {
		if providerID == "" {
			transition := applyStatus(order, changes, enums.OrderStatusFulfillmentFailed)
			if transition.Applied {
				reason := outcome.FailureReason
				order.FulfillmentError = &reason
				changes["fulfillment_error"] = reason
			}
			return transition
		}

		setOnce(changes, "fulfillment_order_id", &order.FulfillmentOrderID, &providerID)
		transition := applyStatus(order, changes, enums.OrderStatusSentToFulfillment)
		if transition.Changed() && order.FulfillmentError != nil {
			order.FulfillmentError = nil
			changes["fulfillment_error"] = nil
		}
		return transition
	})
}

func (r *repository) ApplyFulfillmentUpdate(ctx context.Context, id uuid.UUID, patch FulfillmentPatch) (*models.Order, enums.StatusTransition, error) {
	return r.mutate(ctx, id, func(order *models.Order, changes map[string]any) enums.StatusTransition {
		setOnce(changes, "fulfillment_order_id", &order.FulfillmentOrderID, patch.FulfillmentOrderID)
		coalesce(changes, "fulfillment_status", &order.FulfillmentStatus, patch.FulfillmentStatus)
		coalesce(changes, "tracking_number", &order.TrackingNumber, patch.TrackingNumber)
		coalesce(changes, "tracking_url", &order.TrackingURL, patch.TrackingURL)
		if patch.ShippedAt != nil {
			setShippedAt(order, changes, *patch.ShippedAt)
		}

		transition := enums.StatusTransition{From: order.Status, To: order.Status, Applied: true}
		if patch.Status != nil {
			transition = applyStatus(order, changes, *patch.Status)
		}
		// Without a reported date, shipped_at is stamped only once the order is shipped.
		if order.Status == enums.OrderStatusShipped {
			setShippedAt(order, changes, r.now())
		}
		return transition
	})
}

func (r *repository) ResetForResubmission(ctx context.Context, id uuid.UUID) (*models.Order, enums.StatusTransition, error) {
	return r.mutate(ctx, id, func(order *models.Order, changes map[string]any) enums.StatusTransition {
		if order.FulfillmentOrderID != nil {
			return enums.StatusTransition{From: order.Status, To: order.Status, Applied: false}
		}
		return applyStatus(order, changes, enums.OrderStatusPendingSubmission)
	})
}

// MarkShippedNotificationSent is first-write-wins: only the caller whose
// conditional update touches the row gets true.
func (r *repository) MarkShippedNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND shipped_notification_sent_at IS NULL", id).
		Updates(map[string]any{
			"shipped_notification_sent_at": at.UTC(),
			"updated_at":                   r.now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// mutate loads the row under a write lock, lets fn stage changes and always
// bumps updated_at.
func (r *repository) mutate(
	ctx context.Context,
	id uuid.UUID,
	fn func(order *models.Order, changes map[string]any) enums.StatusTransition,
) (*models.Order, enums.StatusTransition, error) {
	var (
		result     *models.Order
		transition enums.StatusTransition
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&order).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		changes := map[string]any{}
		transition = fn(&order, changes)

		now := r.now().UTC()
		changes["updated_at"] = now
		if err := tx.Model(&models.Order{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			if db.IsUniqueViolation(err, db.ConstraintOrdersFulfillmentOrderID) {
				return fmt.Errorf("%w: %w", ErrFulfillmentOrderConflict, err)
			}
			return err
		}
		order.UpdatedAt = now
		result = &order
		return nil
	})
	if err != nil {
		return nil, enums.StatusTransition{}, err
	}
	return result, transition, nil
}

func applyStatus(order *models.Order, changes map[string]any, next enums.OrderStatus) enums.StatusTransition {
	transition := enums.ResolveTransition(order.Status, next)
	if transition.Changed() {
		order.Status = transition.To
		changes["status"] = transition.To
	}
	return transition
}

func setShippedAt(order *models.Order, changes map[string]any, at time.Time) {
	if order.ShippedAt != nil {
		return
	}
	shippedAt := at.UTC()
	order.ShippedAt = &shippedAt
	changes["shipped_at"] = shippedAt
}

// coalesce writes incoming only when it carries a value.
func coalesce(changes map[string]any, column string, current **string, incoming *string) {
	if incoming == nil || strings.TrimSpace(*incoming) == "" {
		return
	}
	if *current != nil && **current == *incoming {
		return
	}
	value := *incoming
	*current = &value
	changes[column] = value
}

// setOnce writes incoming only while the stored value is still null.
func setOnce(changes map[string]any, column string, current **string, incoming *string) {
	if *current != nil {
		return
	}
	coalesce(changes, column, current, incoming)
}
