// Package availability resolves a professional's working-hours rules into
// open intervals and generates bookable slot start times from them.
package availability

import (
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/interval"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

// ResolveDay computes the open intervals for one local date.
//
// Date-specific rules fully override recurring rules: when any rule targets
// the exact date, only those rules are considered, so a single date-specific
// closed rule blacks out a day the weekly schedule would open, and a
// date-specific open rule opens a day the weekly schedule leaves closed.
// With no date-specific match, the recurring rules for the date's weekday
// apply. Within the selected set, open windows are unioned and explicit
// blocked windows are carved out of the union.
//
// date must be midnight of the target day in the business timezone; rule
// minutes are interpreted against that same location.
func ResolveDay(rules []model.AvailabilityRule, date time.Time) []interval.Interval {
	var selected []model.AvailabilityRule
	override := false
	for _, r := range rules {
		if r.Audit.Deleted() || !r.AppliesTo(date) {
			continue
		}
		if !r.Recurring() && !override {
			override = true
			selected = selected[:0]
		}
		if override && r.Recurring() {
			continue
		}
		selected = append(selected, r)
	}

	var open, blocked []interval.Interval
	for _, r := range selected {
		iv, ok := ruleInterval(r, date)
		if !ok {
			continue
		}
		if r.Available {
			open = append(open, iv)
		} else {
			blocked = append(blocked, iv)
		}
	}
	if len(open) == 0 {
		return nil
	}
	return interval.Subtract(open, blocked)
}

func ruleInterval(r model.AvailabilityRule, date time.Time) (interval.Interval, bool) {
	if r.StartMinute >= r.EndMinute {
		return interval.Interval{}, false
	}
	y, m, d := date.Date()
	loc := date.Location()
	start := time.Date(y, m, d, 0, r.StartMinute, 0, 0, loc)
	end := time.Date(y, m, d, 0, r.EndMinute, 0, 0, loc)
	iv, err := interval.New(start, end)
	if err != nil {
		return interval.Interval{}, false
	}
	return iv, true
}
