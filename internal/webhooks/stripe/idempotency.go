package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/posterloft/posterloft-backend/pkg/redis"
)

// IdempotencyGuard short-circuits Stripe event redeliveries before any
// provider or database call. Order creation stays idempotent without it.
type IdempotencyGuard struct {
	store  redis.EventStore
	ttl    time.Duration
	source string
}

func NewIdempotencyGuard(store redis.EventStore, ttl time.Duration, source string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if source == "" {
		return nil, errors.New("source is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, source: source}, nil
}

// CheckAndMark reports whether the event was already seen and marks it if not.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	first, err := g.store.MarkEvent(ctx, g.source, eventID, g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark stripe event: %w", err)
	}
	return !first, nil
}

// Delete releases the mark so a failed event can be redelivered.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.UnmarkEvent(ctx, g.source, eventID)
}
