package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slotsync/slotsync/libs/db"
	"github.com/slotsync/slotsync/services/booking-service/internal/lifecycle"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
	"github.com/slotsync/slotsync/services/booking-service/internal/outbox"
	"github.com/slotsync/slotsync/services/booking-service/internal/reservation"
)

// Store composes the repositories into the commit surface the reservation
// coordinator and the lifecycle manager work against. Every commit method
// writes the booking, its outbox event, and the customer statistics delta
// in one transaction.
//
// The no-double-booking guarantee lives in the bookings table's exclusion
// constraint on (professional_id, occupied range) over active statuses:
// the insert is the conditional write, and losing the race raises
// SQLSTATE 23P01, surfaced here as reservation.ErrSlotConflict.
type Store struct {
	pool   *db.Pool
	repo   *BookingRepository
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, repo *BookingRepository, ob *outbox.Repository) *Store {
	return &Store{pool: pool, repo: repo, outbox: ob}
}

func (s *Store) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return model.Booking{}, reservation.ErrNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

func (s *Store) ListActive(ctx context.Context, professionalID string, from, to time.Time) ([]model.Booking, error) {
	return s.repo.ListActive(ctx, professionalID, from, to)
}

func (s *Store) CodeExists(ctx context.Context, businessID, code string) (bool, error) {
	return s.repo.CodeExists(ctx, businessID, code)
}

func (s *Store) CommitReservation(ctx context.Context, b model.Booking, ev lifecycle.Event) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.insertBooking(ctx, tx, b); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, b, ev)
	})
}

func (s *Store) CommitTransition(ctx context.Context, b model.Booking, ev lifecycle.Event) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.repo.ApplyTransition(ctx, tx, b, ev.From); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, b, ev)
	})
}

func (s *Store) CommitReschedule(ctx context.Context, old model.Booking, oldEv lifecycle.Event, replacement model.Booking, newEv lifecycle.Event) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Retiring the old booking first frees its occupied range for the
		// replacement within the same transaction.
		if err := s.repo.ApplyTransition(ctx, tx, old, oldEv.From); err != nil {
			return err
		}
		if err := s.recordEvent(ctx, tx, old, oldEv); err != nil {
			return err
		}
		if err := s.insertBooking(ctx, tx, replacement); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, replacement, newEv)
	})
}

func (s *Store) insertBooking(ctx context.Context, tx pgx.Tx, b model.Booking) error {
	if err := s.repo.Insert(ctx, tx, b); err != nil {
		if IsConflict(err) {
			return reservation.ErrSlotConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Store) recordEvent(ctx context.Context, tx pgx.Tx, b model.Booking, ev lifecycle.Event) error {
	evt, err := outbox.BookingEvent(ev, b)
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	if err := s.repo.BumpCustomerStats(ctx, tx, b.BusinessID, b.CustomerID, ev.Action); err != nil {
		return fmt.Errorf("bump customer stats: %w", err)
	}
	return nil
}
