package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	upAnnotation   = "-- +goose Up"
	downAnnotation = "-- +goose Down"
)

// ValidateDir runs ValidateFS over an on-disk directory.
func ValidateDir(dir string) (int, error) {
	if dir == "" {
		return 0, fmt.Errorf("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks that every .sql file is named YYYYMMDDHHMMSS_name.sql,
// that versions are unique, and that each file has an Up section followed by
// a Down section. It returns the number of migrations found.
func ValidateFS(fsys fs.FS) (int, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("read migrations: %w", err)
	}

	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		match := sqlFileRe.FindStringSubmatch(name)
		if match == nil {
			return 0, fmt.Errorf("migration %q: name must look like YYYYMMDDHHMMSS_name.sql", name)
		}
		if prev, dup := versions[match[1]]; dup {
			return 0, fmt.Errorf("migration version %s used by both %q and %q", match[1], prev, name)
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return 0, fmt.Errorf("read migration %q: %w", name, err)
		}
		if err := checkAnnotations(string(body)); err != nil {
			return 0, fmt.Errorf("migration %q: %w", name, err)
		}
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migrations found")
	}
	return len(versions), nil
}

func checkAnnotations(body string) error {
	up := strings.Index(body, upAnnotation)
	down := strings.Index(body, downAnnotation)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", upAnnotation)
	case down < 0:
		return fmt.Errorf("missing %q", downAnnotation)
	case down < up:
		return fmt.Errorf("%q must come before %q", upAnnotation, downAnnotation)
	}
	return nil
}
