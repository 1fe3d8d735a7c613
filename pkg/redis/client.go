package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/posterloft/posterloft-backend/pkg/config"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

// Keys look like posterloft:webhook-event:<source>:<event id>.
const (
	keyNamespace = "posterloft"
	eventPrefix  = "webhook-event"
)

var errNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// EventStore remembers which webhook deliveries are already being handled.
type EventStore interface {
	// MarkEvent returns true only for the first caller to mark the event
	// within ttl.
	MarkEvent(ctx context.Context, source, eventID string, ttl time.Duration) (bool, error)
	UnmarkEvent(ctx context.Context, source, eventID string) error
}

// Client backs the webhook event guard.
type Client struct {
	store cmdable
	raw   *redis.Client
	now   func() time.Time
}

// New connects and pings Redis. A failed ping closes the pool.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "webhook event store connected")
	}
	return &Client{store: raw, raw: raw, now: time.Now}, nil
}

// optionsFromConfig prefers the URL; explicit pool and timeout settings
// fill whatever the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	url, addr := strings.TrimSpace(cfg.URL), strings.TrimSpace(cfg.Address)
	var opts *redis.Options
	switch {
	case url != "":
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case addr != "":
		opts = &redis.Options{Addr: addr, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fillInt(&opts.DB, cfg.DB)
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

// EventKey names the mark for one delivery of one webhook source.
func EventKey(source, eventID string) (string, error) {
	source, eventID = strings.TrimSpace(source), strings.TrimSpace(eventID)
	if source == "" || eventID == "" {
		return "", errors.New("event source and id are required")
	}
	return strings.Join([]string{keyNamespace, eventPrefix, source, eventID}, ":"), nil
}

// MarkEvent stores the time the event was first seen.
func (c *Client) MarkEvent(ctx context.Context, source, eventID string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	key, err := EventKey(source, eventID)
	if err != nil {
		return false, err
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return c.store.SetNX(ctx, key, now().UTC().Format(time.RFC3339), ttl).Result()
}

// UnmarkEvent lets the next delivery of the event through.
func (c *Client) UnmarkEvent(ctx context.Context, source, eventID string) error {
	if c.store == nil {
		return errNotInitialized
	}
	key, err := EventKey(source, eventID)
	if err != nil {
		return err
	}
	return c.store.Del(ctx, key).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

// Close is a no-op for clients built without a connection.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
