package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/posterloft/posterloft-backend/pkg/config"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

const driverPostgres = "postgres"

// Client owns the pooled connection behind the orders store.
type Client struct {
	conn  *gorm.DB
	sqlDB *sql.DB
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the orders database. Only Postgres is supported; timestamps are
// written in UTC.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver != "" && driver != driverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening orders database: %w", err)
	}

	client, err := wrap(conn)
	if err != nil {
		return nil, err
	}
	configurePool(client.sqlDB, cfg)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"max_open_conns": cfg.MaxOpenConns,
			"max_idle_conns": cfg.MaxIdleConns,
		}), "orders database connected")
	}
	return client, nil
}

func wrap(conn *gorm.DB) (*Client, error) {
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	return &Client{conn: conn, sqlDB: sqlDB}, nil
}

// configurePool applies only the limits that are set.
func configurePool(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// DB returns the GORM handle the orders repository is built on.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// SQL returns the raw pool goose migrates through.
func (c *Client) SQL() *sql.DB {
	return c.sqlDB
}

func (c *Client) Ping(ctx context.Context) error {
	return c.sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.sqlDB.Close()
}
