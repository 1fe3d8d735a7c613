package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/posterloft/posterloft-backend/pkg/enums"
)

var (
	versionRe     = regexp.MustCompile(`^\d{14}$`)
	sqlFileRe     = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	statusCheckRe = regexp.MustCompile(`(?is)CONSTRAINT\s+orders_status_check\s+CHECK\s*\(\s*status\s+IN\s*\(([^)]*)\)`)
	quotedValueRe = regexp.MustCompile(`'([^']*)'`)
	gooseMarkers  = []string{"-- +goose Up", "-- +goose Down"}
)

// Migration is one SQL file in the migrations directory.
type Migration struct {
	Version string
	Name    string
	Path    string
}

// ListMigrations returns the SQL migrations in dir ordered by version.
func ListMigrations(dir string) ([]Migration, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var out []Migration
	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name
		out = append(out, Migration{Version: m[1], Name: name, Path: filepath.Join(dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ValidateDir checks file names and goose markers, then checks that the
// orders status constraint matches the statuses the service writes.
func ValidateDir(dir string) error {
	migrations, err := ListMigrations(dir)
	if err != nil {
		return err
	}

	var errs error
	for _, m := range migrations {
		b, err := os.ReadFile(m.Path)
		if err != nil {
			return fmt.Errorf("read file %q: %w", m.Path, err)
		}
		for _, marker := range gooseMarkers {
			if !strings.Contains(string(b), marker) {
				errs = multierr.Append(errs, fmt.Errorf("migration %q missing %q", m.Name, marker))
			}
		}
	}
	if errs != nil {
		return errs
	}
	return CheckStatusConstraint(migrations, enums.OrderStatuses())
}

// CheckStatusConstraint finds the latest orders_status_check definition and
// reports statuses missing from it or unknown to the service. Directories
// that never define the constraint pass.
func CheckStatusConstraint(migrations []Migration, statuses []enums.OrderStatus) error {
	var (
		allowed []string
		found   bool
	)
	for _, m := range migrations {
		b, err := os.ReadFile(m.Path)
		if err != nil {
			return fmt.Errorf("read file %q: %w", m.Path, err)
		}
		if match := statusCheckRe.FindStringSubmatch(upSection(string(b))); match != nil {
			found = true
			allowed = allowed[:0]
			for _, v := range quotedValueRe.FindAllStringSubmatch(match[1], -1) {
				allowed = append(allowed, v[1])
			}
		}
	}
	if !found {
		return nil
	}

	inSchema := map[string]bool{}
	for _, v := range allowed {
		inSchema[v] = true
	}
	known := map[string]bool{}
	var errs error
	for _, s := range statuses {
		known[string(s)] = true
		if !inSchema[string(s)] {
			errs = multierr.Append(errs, fmt.Errorf("orders_status_check does not allow %q", s))
		}
	}
	for _, v := range allowed {
		if !known[v] {
			errs = multierr.Append(errs, fmt.Errorf("orders_status_check allows unknown status %q", v))
		}
	}
	return errs
}

func upSection(sql string) string {
	if i := strings.Index(sql, "-- +goose Down"); i >= 0 {
		return sql[:i]
	}
	return sql
}
