package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
)

const uniqueViolation = "23505"

// BaseRepository provides common functionality for all repositories. q is
// either the pool or an open transaction.
type BaseRepository struct {
	q sqlx.ExtContext
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(q sqlx.ExtContext) BaseRepository {
	return BaseRepository{q: q}
}

// rebind turns the ?-placeholders used in this package into the driver's
// bind style ($1 for postgres).
func (r *BaseRepository) rebind(query string) string {
	return r.q.Rebind(query)
}

// forUpdate returns the row-lock suffix for drivers that support it. SQLite
// serialises writers on its own and has no FOR UPDATE.
func (r *BaseRepository) forUpdate() string {
	if r.q.DriverName() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

func (r *BaseRepository) forUpdateSkipLocked() string {
	if r.q.DriverName() == "postgres" {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}

// mapError translates driver errors into application errors. Anything
// unrecognised is wrapped as-is so callers still see the cause.
func mapError(resource, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.Conflict(fmt.Sprintf("%s already exists", resource), err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, resource, err)
}
