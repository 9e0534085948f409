// Package reservation turns slot selections into committed bookings with
// at-most-one-winner semantics under concurrent contention.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slotsync/slotsync/services/booking-service/internal/availability"
	"github.com/slotsync/slotsync/services/booking-service/internal/interval"
	"github.com/slotsync/slotsync/services/booking-service/internal/lifecycle"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

// BookingStore is the storage surface of the coordinator. Commit methods
// are atomic conditional writes: they fail with ErrSlotConflict when a
// conflicting active booking exists by the time the write lands, which is
// what makes two concurrent reservations for overlapping intervals resolve
// to exactly one winner.
type BookingStore interface {
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	// ListActive returns bookings in an active status whose occupied
	// interval overlaps [from, to), ordered by start time.
	ListActive(ctx context.Context, professionalID string, from, to time.Time) ([]model.Booking, error)
	CodeExists(ctx context.Context, businessID, code string) (bool, error)
	CommitReservation(ctx context.Context, b model.Booking, ev lifecycle.Event) error
	// CommitReschedule persists the terminal marker on the old booking and
	// the replacement in one transaction.
	CommitReschedule(ctx context.Context, old model.Booking, oldEv lifecycle.Event, replacement model.Booking, newEv lifecycle.Event) error
}

// RuleStore reads a professional's availability rules.
type RuleStore interface {
	ListRules(ctx context.Context, professionalID string) ([]model.AvailabilityRule, error)
}

// PolicyProvider resolves business and service booking configuration.
type PolicyProvider interface {
	BusinessPolicy(ctx context.Context, businessID string) (model.BusinessPolicy, error)
	ServicePolicy(ctx context.Context, serviceID string) (model.ServicePolicy, error)
}

// EntitlementChecker enforces the business's subscription-plan limits.
// Implementations return a *PolicyError when the plan does not admit
// another booking.
type EntitlementChecker interface {
	CheckReservation(ctx context.Context, businessID string, at time.Time) error
}

type Coordinator struct {
	store        BookingStore
	rules        RuleStore
	policies     PolicyProvider
	entitlements EntitlementChecker
	logger       *slog.Logger
	now          func() time.Time
}

func NewCoordinator(store BookingStore, rules RuleStore, policies PolicyProvider, entitlements EntitlementChecker, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:        store,
		rules:        rules,
		policies:     policies,
		entitlements: entitlements,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type ReserveRequest struct {
	BusinessID     string
	ProfessionalID string
	ServiceID      string
	CustomerID     string
	LocationID     string
	Start          time.Time
	Notes          string
}

func (r ReserveRequest) validate() error {
	switch {
	case r.BusinessID == "":
		return errors.New("business id is required")
	case r.ProfessionalID == "":
		return errors.New("professional id is required")
	case r.ServiceID == "":
		return errors.New("service id is required")
	case r.CustomerID == "":
		return errors.New("customer id is required")
	case r.Start.IsZero():
		return fmt.Errorf("%w: start time is required", interval.ErrInvalidInterval)
	}
	return nil
}

// Reserve commits a booking for the requested slot. The slot is revalidated
// against the latest rule and booking snapshot before the conditional
// insert; losing the race between revalidation and commit surfaces as
// ErrSlotConflict and the caller re-offers slots rather than shifting the
// time silently.
func (c *Coordinator) Reserve(ctx context.Context, req ReserveRequest) (model.Booking, error) {
	b, ev, err := c.prepare(ctx, req)
	if err != nil {
		return model.Booking{}, err
	}
	if err := c.store.CommitReservation(ctx, b, ev); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			c.logger.InfoContext(ctx, "reservation lost commit race",
				"professional_id", req.ProfessionalID,
				"start", req.Start)
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("commit reservation: %w", err)
	}
	c.logger.InfoContext(ctx, "booking reserved",
		"booking_id", b.ID,
		"code", b.Code,
		"professional_id", b.ProfessionalID,
		"status", string(b.Status))
	return b, nil
}

// Reschedule marks the old booking rescheduled and reserves a replacement
// slot in a single atomic commit. The replacement goes through the full
// reservation validation.
func (c *Coordinator) Reschedule(ctx context.Context, bookingID string, newStart time.Time, actor lifecycle.Actor, notes string) (model.Booking, error) {
	old, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	now := c.now()
	oldEv, err := lifecycle.MarkRescheduled(&old, actor, now)
	if err != nil {
		return model.Booking{}, err
	}
	old.Audit.UpdatedAt = now

	replacement, newEv, err := c.prepare(ctx, ReserveRequest{
		BusinessID:     old.BusinessID,
		ProfessionalID: old.ProfessionalID,
		ServiceID:      old.ServiceID,
		CustomerID:     old.CustomerID,
		LocationID:     old.LocationID,
		Start:          newStart,
		Notes:          notes,
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := c.store.CommitReschedule(ctx, old, oldEv, replacement, newEv); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("commit reschedule: %w", err)
	}
	c.logger.InfoContext(ctx, "booking rescheduled",
		"old_booking_id", old.ID,
		"new_booking_id", replacement.ID,
		"start", replacement.StartTime)
	return replacement, nil
}

// prepare runs validation, policy checks, and slot revalidation, and builds
// the candidate booking without committing it.
func (c *Coordinator) prepare(ctx context.Context, req ReserveRequest) (model.Booking, lifecycle.Event, error) {
	if err := req.validate(); err != nil {
		return model.Booking{}, lifecycle.Event{}, err
	}

	bizPol, err := c.policies.BusinessPolicy(ctx, req.BusinessID)
	if err != nil {
		return model.Booking{}, lifecycle.Event{}, fmt.Errorf("load business policy: %w", err)
	}
	svcPol, err := c.policies.ServicePolicy(ctx, req.ServiceID)
	if err != nil {
		return model.Booking{}, lifecycle.Event{}, fmt.Errorf("load service policy: %w", err)
	}
	if svcPol.DurationMins <= 0 {
		return model.Booking{}, lifecycle.Event{}, fmt.Errorf("%w: service duration must be positive", interval.ErrInvalidInterval)
	}

	loc := bizPol.Location()
	start := req.Start.In(loc)
	requested, err := interval.New(start, start.Add(svcPol.Duration()))
	if err != nil {
		return model.Booking{}, lifecycle.Event{}, err
	}

	now := c.now()
	notBefore := now.Add(bizPol.MinAdvance())
	horizon := now.AddDate(0, 0, bizPol.MaxAdvanceDays)
	if start.Before(notBefore) {
		return model.Booking{}, lifecycle.Event{}, policyErr(RuleMinAdvance,
			"bookings require at least %dh notice", bizPol.MinAdvanceHours)
	}
	if start.After(horizon) {
		return model.Booking{}, lifecycle.Event{}, policyErr(RuleMaxAdvance,
			"bookings can be made at most %d days ahead", bizPol.MaxAdvanceDays)
	}

	if err := c.entitlements.CheckReservation(ctx, req.BusinessID, start); err != nil {
		return model.Booking{}, lifecycle.Event{}, err
	}

	rules, err := c.rules.ListRules(ctx, req.ProfessionalID)
	if err != nil {
		return model.Booking{}, lifecycle.Event{}, fmt.Errorf("load availability rules: %w", err)
	}
	day := midnight(start)
	open := availability.ResolveDay(rules, day)

	active, err := c.store.ListActive(ctx, req.ProfessionalID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return model.Booking{}, lifecycle.Event{}, fmt.Errorf("load active bookings: %w", err)
	}
	busy := occupiedIntervals(active)

	if !slotOffered(start, availability.Slots(availability.SlotRequest{
		Open:        open,
		Busy:        busy,
		Service:     svcPol,
		Granularity: bizPol.Granularity(),
		NotBefore:   notBefore,
		NotAfter:    horizon,
	})) {
		occupied := requested.Expand(svcPol.BufferBeforeDuration(), svcPol.BufferAfterDuration())
		for _, b := range busy {
			if occupied.Overlaps(b) {
				return model.Booking{}, lifecycle.Event{}, ErrSlotConflict
			}
		}
		return model.Booking{}, lifecycle.Event{}, policyErr(RuleUnavailable,
			"the professional is not available at %s", start.Format(time.RFC3339))
	}

	code, err := c.generateCode(ctx, req.BusinessID, start)
	if err != nil {
		return model.Booking{}, lifecycle.Event{}, err
	}

	occupied := requested.Expand(svcPol.BufferBeforeDuration(), svcPol.BufferAfterDuration())
	b := model.Booking{
		ID:             uuid.NewString(),
		Code:           code,
		BusinessID:     req.BusinessID,
		CustomerID:     req.CustomerID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		LocationID:     req.LocationID,
		StartTime:      requested.Start,
		EndTime:        requested.End,
		OccupiedStart:  occupied.Start,
		OccupiedEnd:    occupied.End,
		Status:         model.StatusPending,
		Notes:          req.Notes,
		Audit:          model.Audit{CreatedAt: now, UpdatedAt: now, Active: true},
	}
	if bizPol.AutoConfirm {
		b.Status = model.StatusConfirmed
		b.ConfirmedAt = &now
	}
	return b, lifecycle.Created(b, lifecycle.Actor{ID: req.CustomerID}, now), nil
}

type SlotQuery struct {
	BusinessID     string
	ProfessionalID string
	ServiceID      string
	// Inclusive local date range. Times of day are ignored.
	From time.Time
	To   time.Time
}

// ListSlots resolves availability for each date of the query range and
// returns the bookable start times as one ascending lazy sequence. All
// reads happen before the sequence is returned, so iterating it is pure
// and restartable.
func (c *Coordinator) ListSlots(ctx context.Context, q SlotQuery) (iter.Seq[time.Time], error) {
	bizPol, err := c.policies.BusinessPolicy(ctx, q.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("load business policy: %w", err)
	}
	svcPol, err := c.policies.ServicePolicy(ctx, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service policy: %w", err)
	}
	rules, err := c.rules.ListRules(ctx, q.ProfessionalID)
	if err != nil {
		return nil, fmt.Errorf("load availability rules: %w", err)
	}

	loc := bizPol.Location()
	first := midnight(q.From.In(loc))
	last := midnight(q.To.In(loc))
	if last.Before(first) {
		return nil, fmt.Errorf("%w: date range end precedes start", interval.ErrInvalidInterval)
	}

	active, err := c.store.ListActive(ctx, q.ProfessionalID, first, last.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load active bookings: %w", err)
	}
	busy := occupiedIntervals(active)

	now := c.now()
	notBefore := now.Add(bizPol.MinAdvance())
	horizon := now.AddDate(0, 0, bizPol.MaxAdvanceDays)

	return func(yield func(time.Time) bool) {
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			daySlots := availability.Slots(availability.SlotRequest{
				Open:        availability.ResolveDay(rules, day),
				Busy:        busy,
				Service:     svcPol,
				Granularity: bizPol.Granularity(),
				NotBefore:   notBefore,
				NotAfter:    horizon,
			})
			for s := range daySlots {
				if !yield(s) {
					return
				}
			}
		}
	}, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func occupiedIntervals(bookings []model.Booking) []interval.Interval {
	out := make([]interval.Interval, 0, len(bookings))
	for _, b := range bookings {
		if !b.Status.IsActive() {
			continue
		}
		iv, err := interval.New(b.OccupiedStart, b.OccupiedEnd)
		if err != nil {
			continue
		}
		out = append(out, iv)
	}
	return out
}

func slotOffered(start time.Time, slots iter.Seq[time.Time]) bool {
	for s := range slots {
		if s.Equal(start) {
			return true
		}
		if s.After(start) {
			return false
		}
	}
	return false
}
