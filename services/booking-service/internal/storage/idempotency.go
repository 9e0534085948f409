package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRecord captures the stored outcome of a reservation request
// so retries with the same Idempotency-Key replay the original response.
type IdempotencyRecord struct {
	BusinessID      string
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

// LockIdempotencyKey claims the key inside the current transaction. The
// returned bool is true when the key already existed, in which case the
// record holds the prior outcome (possibly still empty if the first
// request is in flight, since the row lock serializes against it).
func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, businessID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, businessID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, businessID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, businessID, key, bookingID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = NULLIF($3, '')::uuid,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key, bookingID, statusCode, response)
	return err
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, businessID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT business_id::text,
			idempotency_key,
			COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(
		&rec.BusinessID,
		&rec.IdempotencyKey,
		&rec.BookingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
