package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultDir holds the orders schema migrations.
const DefaultDir = "pkg/migrate/migrations"

// Command is a goose command that needs a live database.
type Command string

const (
	CommandUp     Command = "up"
	CommandDown   Command = "down"
	CommandStatus Command = "status"
)

func ParseCommand(value string) (Command, error) {
	switch cmd := Command(strings.ToLower(strings.TrimSpace(value))); cmd {
	case CommandUp, CommandDown, CommandStatus:
		return cmd, nil
	}
	return "", fmt.Errorf("unsupported migration command %q", value)
}

// ParseVersion accepts the YYYYMMDDHHMMSS prefix of a migration file name.
func ParseVersion(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if !versionRe.MatchString(value) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", value)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Runner applies the orders migrations in dir.
type Runner struct {
	db  *sql.DB
	dir string
}

func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Runner{db: db, dir: dir}, nil
}

func (r *Runner) Run(ctx context.Context, cmd Command) error {
	if err := goose.RunContext(ctx, string(cmd), r.db, r.dir); err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

// Version reports the schema version recorded in the database.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, r.db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return version, nil
}

// MigrateTo moves the schema up or down until it sits at target.
func (r *Runner) MigrateTo(ctx context.Context, target int64) error {
	current, err := r.Version(ctx)
	if err != nil {
		return err
	}
	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, r.db, r.dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, r.db, r.dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}
