package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)

// migrationTemplate starts every new file inside the orders table's
// StatementBegin/End block.
const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- ALTER TABLE orders ...;
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql. The version is
// bumped past the newest existing file so two migrations created in the same
// second still sort.
func CreateSQLMigration(dir, name string) (string, error) {
	return createAt(dir, name, time.Now().UTC())
}

func createAt(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(nameSanitizeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	existing, err := ListMigrations(dir)
	if err != nil {
		return "", err
	}
	version := now.Format("20060102150405")
	if n := len(existing); n > 0 && existing[n-1].Version >= version {
		latest, err := time.Parse("20060102150405", existing[n-1].Version)
		if err != nil {
			return "", fmt.Errorf("parse version %q: %w", existing[n-1].Version, err)
		}
		version = latest.Add(time.Second).Format("20060102150405")
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, slug))
	if err := os.WriteFile(path, []byte(fmt.Sprintf(migrationTemplate, slug)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}
