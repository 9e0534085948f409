package handlers

import (
	"context"

	"github.com/slotsync/slotsync/services/booking-service/internal/storage"
)

// claimIdempotencyKey records the key before the reservation attempt. The
// second return is true when the key was already claimed; the record then
// carries the stored outcome, or a zero status code while the original
// request is still in flight.
func (h *BookingHandler) claimIdempotencyKey(ctx context.Context, businessID, key string) (storage.IdempotencyRecord, bool, error) {
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return storage.IdempotencyRecord{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, existed, err := h.repo.LockIdempotencyKey(ctx, tx, businessID, key)
	if err != nil {
		return storage.IdempotencyRecord{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return storage.IdempotencyRecord{}, false, err
	}
	return rec, existed, nil
}

func (h *BookingHandler) finalizeIdempotency(ctx context.Context, businessID, key, bookingID string, statusCode int, body []byte) error {
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.FinalizeIdempotency(ctx, tx, businessID, key, bookingID, statusCode, body); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
