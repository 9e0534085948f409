package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slotsync/slotsync/libs/db"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const bookingColumns = `
	id::text, code, business_id::text, customer_id::text, professional_id::text, service_id::text,
	COALESCE(location_id::text, ''),
	start_time, end_time, occupied_start, occupied_end, status,
	COALESCE(notes, ''), COALESCE(internal_notes, ''),
	confirmed_at, completed_at, cancelled_at, COALESCE(cancelled_by, ''), COALESCE(cancel_reason, ''),
	attended, created_at, updated_at, deleted_at, active`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.Code,
		&b.BusinessID,
		&b.CustomerID,
		&b.ProfessionalID,
		&b.ServiceID,
		&b.LocationID,
		&b.StartTime,
		&b.EndTime,
		&b.OccupiedStart,
		&b.OccupiedEnd,
		&b.Status,
		&b.Notes,
		&b.InternalNotes,
		&b.ConfirmedAt,
		&b.CompletedAt,
		&b.CancelledAt,
		&b.CancelledBy,
		&b.CancelReason,
		&b.Attended,
		&b.Audit.CreatedAt,
		&b.Audit.UpdatedAt,
		&b.Audit.DeletedAt,
		&b.Audit.Active,
	)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) Insert(ctx context.Context, tx pgx.Tx, b model.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings
			(id, code, business_id, customer_id, professional_id, service_id, location_id,
			 start_time, end_time, occupied_start, occupied_end, status,
			 notes, confirmed_at, created_at, updated_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid,
			$8, $9, $10, $11, $12,
			NULLIF($13, ''), $14, $15, $16, true)
	`, b.ID, b.Code, b.BusinessID, b.CustomerID, b.ProfessionalID, b.ServiceID, b.LocationID,
		b.StartTime, b.EndTime, b.OccupiedStart, b.OccupiedEnd, b.Status,
		b.Notes, b.ConfirmedAt, b.Audit.CreatedAt, b.Audit.UpdatedAt)
	return err
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND deleted_at IS NULL
	`, id))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, id))
}

// ApplyTransition writes the post-transition fields conditionally on the
// status the transition was decided against. A concurrent transition makes
// the update match nothing and surfaces as ErrStaleBooking.
func (r *BookingRepository) ApplyTransition(ctx context.Context, tx pgx.Tx, b model.Booking, from model.BookingStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $3,
			confirmed_at = $4,
			completed_at = $5,
			cancelled_at = $6,
			cancelled_by = NULLIF($7, ''),
			cancel_reason = NULLIF($8, ''),
			attended = $9,
			updated_at = $10
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
	`, b.ID, from, b.Status, b.ConfirmedAt, b.CompletedAt, b.CancelledAt, b.CancelledBy, b.CancelReason,
		b.Attended, b.Audit.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleBooking
	}
	return nil
}

// ListActive returns bookings in an active status whose occupied span
// overlaps [from, to), ascending by start time.
func (r *BookingRepository) ListActive(ctx context.Context, professionalID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE professional_id = $1
			AND status IN ('pending', 'confirmed', 'in_progress')
			AND occupied_start < $3
			AND occupied_end > $2
			AND deleted_at IS NULL
		ORDER BY start_time ASC
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) ListByBusiness(ctx context.Context, businessID string, status model.BookingStatus, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE business_id = $1
			AND ($2 = '' OR status = $2)
			AND deleted_at IS NULL
		ORDER BY start_time DESC
		LIMIT $3
	`, businessID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, businessID, customerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE business_id = $1
			AND customer_id = $2
			AND deleted_at IS NULL
		ORDER BY start_time DESC
		LIMIT $3
	`, businessID, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) CodeExists(ctx context.Context, businessID, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings WHERE business_id = $1 AND code = $2
		)
	`, businessID, code).Scan(&exists)
	return exists, err
}

// CountActiveByBusinessInRange supports the monthly plan-entitlement check.
func (r *BookingRepository) CountActiveByBusinessInRange(ctx context.Context, businessID string, startInclusive, endExclusive time.Time) (int, error) {
	var cnt int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE business_id = $1
			AND status NOT IN ('cancelled', 'rescheduled')
			AND start_time >= $2
			AND start_time < $3
			AND deleted_at IS NULL
	`, businessID, startInclusive, endExclusive).Scan(&cnt)
	return cnt, err
}

// SoftDelete deactivates a booking row without removing it; history stays
// queryable for audits.
func (r *BookingRepository) SoftDelete(ctx context.Context, tx pgx.Tx, id string, now time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET deleted_at = $2, active = false, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}
