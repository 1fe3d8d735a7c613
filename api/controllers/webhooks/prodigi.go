package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/posterloft/posterloft-backend/api/responses"
	"github.com/posterloft/posterloft-backend/internal/orders"
	prodigiwebhook "github.com/posterloft/posterloft-backend/internal/webhooks/prodigi"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

type FulfillmentWebhookService interface {
	HandleCallback(ctx context.Context, payload []byte, signature string) (orders.FulfillmentResult, error)
}

type fulfillmentAck struct {
	Received bool   `json:"received"`
	Matched  bool   `json:"matched"`
	Status   string `json:"status,omitempty"`
}

// FulfillmentWebhook applies Prodigi status callbacks. Callbacks for orders
// this service does not know are acknowledged so the provider stops retrying.
func FulfillmentWebhook(svc FulfillmentWebhookService, metrics WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		started := time.Now()
		outcome := "error"
		defer func() { observe(metrics, sourceFulfillment, outcome, started) }()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		result, err := svc.HandleCallback(ctx, payload, r.Header.Get(prodigiwebhook.SignatureHeader))
		if err != nil {
			if code := pkgerrors.CodeOf(err); code == pkgerrors.CodeValidation || code == pkgerrors.CodeSignature {
				outcome = "rejected"
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ack := fulfillmentAck{Received: true, Matched: result.Matched}
		if result.Matched {
			outcome = "processed"
			if result.Order != nil {
				ack.Status = string(result.Order.Status)
			}
		} else {
			outcome = "unmatched"
			if logg != nil {
				logg.Info(ctx, "fulfillment callback acknowledged without a matching order")
			}
		}
		if result.NotificationSent && result.Order != nil && logg != nil {
			logg.Info(ctx, fmt.Sprintf("shipment notification sent for order %s", result.Order.ID))
		}
		responses.WriteSuccess(w, ack)
	}
}
