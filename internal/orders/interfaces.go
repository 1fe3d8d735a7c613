package orders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/posterloft/posterloft-backend/pkg/db/models"
	"github.com/posterloft/posterloft-backend/pkg/enums"
)

// Repository defines persistence operations for the orders table. Lookups
// return (nil, nil) when no row matches.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindByFulfillmentOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	InsertIfAbsent(ctx context.Context, order *models.Order) (InsertResult, error)
	RecordSubmission(ctx context.Context, id uuid.UUID, outcome SubmissionOutcome) (*models.Order, enums.StatusTransition, error)
	ApplyFulfillmentUpdate(ctx context.Context, id uuid.UUID, patch FulfillmentPatch) (*models.Order, enums.StatusTransition, error)
	MarkShippedNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ResetForResubmission(ctx context.Context, id uuid.UUID) (*models.Order, enums.StatusTransition, error)
}
