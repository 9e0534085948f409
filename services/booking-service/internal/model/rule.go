package model

import "time"

// AvailabilityRule describes one window of a professional's schedule.
// A rule is either recurring (Weekday set, applies every week) or
// date-specific (Date set to "2006-01-02", applies once and overrides all
// recurring rules for that date). Available=false expresses an explicit
// blocked window (lunch break, day off).
//
// Rules are authored by business staff through the admin surface; the
// engine only reads them.
type AvailabilityRule struct {
	ID             string
	ProfessionalID string

	Weekday *time.Weekday
	Date    string // empty for recurring rules

	// Minutes from local midnight in the business timezone. StartMinute
	// must be strictly less than EndMinute.
	StartMinute int
	EndMinute   int

	Available bool
	Notes     string

	Audit Audit
}

// Recurring reports whether the rule repeats weekly.
func (r AvailabilityRule) Recurring() bool {
	return r.Date == ""
}

// AppliesTo reports whether the rule is in effect on the given local date.
func (r AvailabilityRule) AppliesTo(date time.Time) bool {
	if !r.Recurring() {
		return r.Date == date.Format("2006-01-02")
	}
	return r.Weekday != nil && *r.Weekday == date.Weekday()
}
