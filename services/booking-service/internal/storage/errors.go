package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStaleBooking is returned when a conditional update matched no row:
// the booking moved to a different status between read and write.
var ErrStaleBooking = errors.New("booking was modified concurrently")

// IsConflict reports an exclusion-constraint violation (SQLSTATE 23P01),
// raised when a booking's occupied range overlaps an active one for the
// same professional.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsUniqueViolation reports SQLSTATE 23505, used for inbox dedupe and
// booking code uniqueness.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
