package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/posterloft/posterloft-backend/api/responses"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

const (
	sourcePayment     = "payment"
	sourceFulfillment = "fulfillment"

	maxWebhookBodyBytes = 1 << 20
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// EventGuard remembers processed event ids.
type EventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type SignatureVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

type WebhookMetrics interface {
	ObserveWebhook(source, outcome string, duration time.Duration)
}

type receivedAck struct {
	Received bool `json:"received"`
}

// PaymentWebhook handles Stripe checkout events. guard may be nil, in which
// case redeliveries are absorbed by the order store alone.
func PaymentWebhook(svc StripeWebhookService, verifier SignatureVerifier, guard EventGuard, metrics WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		started := time.Now()
		outcome := "error"
		defer func() { observe(metrics, sourcePayment, outcome, started) }()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := verifier.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			outcome = "rejected"
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		}

		if guard != nil {
			alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if alreadyProcessed {
				outcome = "duplicate"
				responses.WriteSuccess(w, receivedAck{Received: true})
				return
			}
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if guard != nil {
				if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
					logg.Warn(ctx, fmt.Sprintf("release idempotency mark: %v", delErr))
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome = "processed"
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteSuccess(w, receivedAck{Received: true})
	}
}

func observe(metrics WebhookMetrics, source, outcome string, started time.Time) {
	if metrics == nil {
		return
	}
	metrics.ObserveWebhook(source, outcome, time.Since(started))
}
