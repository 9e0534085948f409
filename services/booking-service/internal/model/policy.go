package model

import "time"

// ServicePolicy is the scheduling-relevant slice of a service definition.
type ServicePolicy struct {
	ServiceID     string
	DurationMins  int
	BufferBefore  int // preparation minutes before the appointment
	BufferAfter   int // cleanup minutes after the appointment
}

func (p ServicePolicy) Duration() time.Duration {
	return time.Duration(p.DurationMins) * time.Minute
}

func (p ServicePolicy) BufferBeforeDuration() time.Duration {
	return time.Duration(p.BufferBefore) * time.Minute
}

func (p ServicePolicy) BufferAfterDuration() time.Duration {
	return time.Duration(p.BufferAfter) * time.Minute
}

// BusinessPolicy is the per-tenant booking configuration. Owned by the
// business admin surface; the engine treats it as read-only input.
type BusinessPolicy struct {
	BusinessID        string
	Timezone          string
	MinAdvanceHours   int
	MaxAdvanceDays    int
	CancellationHours int
	// Slot granularity, derived from the business default slot duration.
	SlotGranularityMins int
	// When true, reservations land directly in confirmed instead of
	// pending manual confirmation.
	AutoConfirm bool
}

// DefaultBusinessPolicy mirrors the platform defaults applied to new
// tenants: 90 days max advance, 2 hours min advance, 24h cancellation
// notice, 30-minute slot grid.
func DefaultBusinessPolicy(businessID string) BusinessPolicy {
	return BusinessPolicy{
		BusinessID:          businessID,
		Timezone:            "UTC",
		MinAdvanceHours:     2,
		MaxAdvanceDays:      90,
		CancellationHours:   24,
		SlotGranularityMins: 30,
	}
}

func (p BusinessPolicy) MinAdvance() time.Duration {
	return time.Duration(p.MinAdvanceHours) * time.Hour
}

func (p BusinessPolicy) CancellationNotice() time.Duration {
	return time.Duration(p.CancellationHours) * time.Hour
}

func (p BusinessPolicy) Granularity() time.Duration {
	if p.SlotGranularityMins <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.SlotGranularityMins) * time.Minute
}

func (p BusinessPolicy) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
