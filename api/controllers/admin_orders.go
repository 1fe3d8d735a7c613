package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/posterloft/posterloft-backend/api/responses"
	"github.com/posterloft/posterloft-backend/pkg/db/models"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

type submissionRetrier interface {
	RetrySubmission(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type orderStatusResponse struct {
	OrderID            uuid.UUID `json:"order_id"`
	PaymentSessionID   string    `json:"payment_session_id"`
	Status             string    `json:"status"`
	FulfillmentOrderID *string   `json:"fulfillment_order_id,omitempty"`
	FulfillmentError   *string   `json:"fulfillment_error,omitempty"`
}

// AdminRetryFulfillment re-drives the fulfillment submission of a stuck order.
func AdminRetryFulfillment(svc submissionRetrier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order lifecycle unavailable"))
			return
		}

		rawOrderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if rawOrderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}
		orderID, err := uuid.Parse(rawOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		order, err := svc.RetrySubmission(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderStatusResponse(order))
	}
}

func newOrderStatusResponse(order *models.Order) orderStatusResponse {
	if order == nil {
		return orderStatusResponse{}
	}
	return orderStatusResponse{
		OrderID:            order.ID,
		PaymentSessionID:   order.PaymentSessionID,
		Status:             string(order.Status),
		FulfillmentOrderID: order.FulfillmentOrderID,
		FulfillmentError:   order.FulfillmentError,
	}
}
