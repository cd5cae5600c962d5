package db

import (
	"strings"

	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique violation, of the named
// constraint when one is given. Postgres errors match on SQLSTATE; anything
// else, including SQLite, falls back to the driver message.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if d := pkgerrors.Dump(err); d.PGCode != "" {
		return d.UniqueViolation() && (constraint == "" || d.PGConstraint == constraint)
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}
