// Package lifecycle implements the booking state machine. Transition
// functions are pure: they mutate the booking value, return the event to
// emit, and leave persistence and delivery to the Manager's collaborators.
package lifecycle

import (
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

type Action string

const (
	// ActionReserve is recorded on the creation event emitted by the
	// reservation coordinator. It is not a transition endpoint action.
	ActionReserve Action = "reserve"

	ActionConfirm    Action = "confirm"
	ActionBegin      Action = "begin"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionNoShow     Action = "no_show"
	ActionReschedule Action = "reschedule"
)

// ParseAction validates an action name from the transport layer.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionConfirm, ActionBegin, ActionComplete, ActionCancel, ActionNoShow, ActionReschedule:
		return a, true
	}
	return "", false
}

// Actor identifies who requested a transition. Staff actors bypass the
// customer cancellation-notice window.
type Actor struct {
	ID    string
	Staff bool
}

// Event describes a committed transition, for the outbox and the customer
// statistics counters.
type Event struct {
	BookingID  string
	BusinessID string
	CustomerID string
	Action     Action
	From       model.BookingStatus
	To         model.BookingStatus
	Actor      Actor
	Reason     string
	At         time.Time
}

// Type returns the event name published to the message bus.
func (e Event) Type() string {
	return "booking." + string(e.To) + ".v1"
}

func event(b model.Booking, from model.BookingStatus, action Action, actor Actor, reason string, now time.Time) Event {
	return Event{
		BookingID:  b.ID,
		BusinessID: b.BusinessID,
		CustomerID: b.CustomerID,
		Action:     action,
		From:       from,
		To:         b.Status,
		Actor:      actor,
		Reason:     reason,
		At:         now,
	}
}

// Created builds the event emitted when the reservation coordinator
// persists a new booking.
func Created(b model.Booking, actor Actor, now time.Time) Event {
	return event(b, "", ActionReserve, actor, "", now)
}

// Confirm moves a pending booking to confirmed and stamps the confirmation
// time.
func Confirm(b *model.Booking, actor Actor, now time.Time) (Event, error) {
	if b.Status != model.StatusPending {
		return Event{}, transitionErr(*b, ActionConfirm, "only pending bookings can be confirmed")
	}
	from := b.Status
	b.Status = model.StatusConfirmed
	b.ConfirmedAt = &now
	return event(*b, from, ActionConfirm, actor, "", now), nil
}

// Begin marks a confirmed booking as in progress when the customer shows
// up.
func Begin(b *model.Booking, actor Actor, now time.Time) (Event, error) {
	if b.Status != model.StatusConfirmed {
		return Event{}, transitionErr(*b, ActionBegin, "only confirmed bookings can be started")
	}
	from := b.Status
	b.Status = model.StatusInProgress
	return event(*b, from, ActionBegin, actor, "", now), nil
}

// Cancel cancels a pending or confirmed booking. Customers must act before
// startTime minus the business's cancellation notice; staff bypass the
// window.
func Cancel(b *model.Booking, actor Actor, reason string, notice time.Duration, now time.Time) (Event, error) {
	if b.Status != model.StatusPending && b.Status != model.StatusConfirmed {
		return Event{}, transitionErr(*b, ActionCancel, "only pending or confirmed bookings can be cancelled")
	}
	if !actor.Staff {
		deadline := b.StartTime.Add(-notice)
		if !now.Before(deadline) {
			return Event{}, &CancellationWindowError{
				TransitionError: TransitionError{
					From:   b.Status,
					Action: ActionCancel,
					Reason: "cancellation notice period has passed",
				},
				Deadline: deadline,
			}
		}
	}
	from := b.Status
	b.Status = model.StatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = actor.ID
	b.CancelReason = reason
	return event(*b, from, ActionCancel, actor, reason, now), nil
}

// Complete closes out a booking after its end time has passed and records
// attendance.
func Complete(b *model.Booking, actor Actor, now time.Time) (Event, error) {
	if b.Status != model.StatusConfirmed && b.Status != model.StatusInProgress {
		return Event{}, transitionErr(*b, ActionComplete, "only confirmed or in-progress bookings can be completed")
	}
	if now.Before(b.EndTime) {
		return Event{}, transitionErr(*b, ActionComplete, "booking has not ended yet")
	}
	from := b.Status
	attended := true
	b.Status = model.StatusCompleted
	b.CompletedAt = &now
	b.Attended = &attended
	return event(*b, from, ActionComplete, actor, "", now), nil
}

// MarkNoShow records a missed appointment once its start time has passed.
func MarkNoShow(b *model.Booking, actor Actor, now time.Time) (Event, error) {
	if b.Status != model.StatusConfirmed && b.Status != model.StatusInProgress {
		return Event{}, transitionErr(*b, ActionNoShow, "only confirmed or in-progress bookings can be marked no-show")
	}
	if now.Before(b.StartTime) {
		return Event{}, transitionErr(*b, ActionNoShow, "booking has not started yet")
	}
	from := b.Status
	attended := false
	b.Status = model.StatusNoShow
	b.Attended = &attended
	return event(*b, from, ActionNoShow, actor, "", now), nil
}

// MarkRescheduled stamps the terminal marker on the old booking when a
// replacement has been reserved. The replacement itself goes through the
// reservation path; this is not a transition back into the active states.
func MarkRescheduled(b *model.Booking, actor Actor, now time.Time) (Event, error) {
	if b.Status != model.StatusPending && b.Status != model.StatusConfirmed {
		return Event{}, transitionErr(*b, ActionReschedule, "only pending or confirmed bookings can be rescheduled")
	}
	from := b.Status
	b.Status = model.StatusRescheduled
	b.CancelledAt = &now
	b.CancelledBy = actor.ID
	return event(*b, from, ActionReschedule, actor, "", now), nil
}
