package model

import "time"

// Booking is a reservation of a professional's time. Entities reference
// each other by id only; resolution happens through the repositories.
type Booking struct {
	ID             string
	Code           string // human-readable, unique per business
	BusinessID     string
	CustomerID     string
	ProfessionalID string
	ServiceID      string
	LocationID     string // optional

	// Customer-visible interval [StartTime, EndTime).
	StartTime time.Time
	EndTime   time.Time

	// Occupied interval: customer-visible interval widened by the
	// originating service's buffers. This is what overlap detection uses.
	OccupiedStart time.Time
	OccupiedEnd   time.Time

	Status BookingStatus

	Notes         string
	InternalNotes string

	ConfirmedAt  *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelledBy  string
	CancelReason string
	Attended     *bool

	Audit Audit
}

func (b *Booking) DurationMinutes() int {
	return int(b.EndTime.Sub(b.StartTime) / time.Minute)
}
