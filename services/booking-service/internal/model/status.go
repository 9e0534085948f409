package model

import "fmt"

// BookingStatus is the closed set of booking states. Persisted as text;
// code must go through Parse/constants rather than comparing raw strings.
type BookingStatus string

const (
	StatusPending     BookingStatus = "pending"
	StatusConfirmed   BookingStatus = "confirmed"
	StatusInProgress  BookingStatus = "in_progress"
	StatusCompleted   BookingStatus = "completed"
	StatusCancelled   BookingStatus = "cancelled"
	StatusNoShow      BookingStatus = "no_show"
	StatusRescheduled BookingStatus = "rescheduled"
)

// ActiveStatuses are the states that occupy the professional's calendar and
// count toward overlap detection.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusInProgress}

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return BookingStatus(s), nil
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

func (s BookingStatus) IsActive() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress:
		return true
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return false
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	case StatusPending, StatusConfirmed, StatusInProgress:
		return false
	}
	return false
}
