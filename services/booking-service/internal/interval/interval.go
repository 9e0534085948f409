// Package interval provides the half-open time-interval arithmetic the
// scheduling engine is built on. All intervals are [Start, End): a booking
// ending at 10:00 does not conflict with one starting at 10:00.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidInterval = errors.New("invalid interval: start must be before end")

type Interval struct {
	Start time.Time
	End   time.Time
}

// New validates start < end. Malformed input is rejected here, before any
// I/O happens upstream.
func New(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidInterval, start, end)
	}
	return Interval{Start: start, End: end}, nil
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps uses half-open semantics: true iff iv.Start < other.End and
// other.Start < iv.End.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Expand widens the interval by the given leading and trailing durations.
// Used for buffer accounting: the occupied span of a booking is its
// customer-visible interval expanded by the service's buffers.
func (iv Interval) Expand(before, after time.Duration) Interval {
	return Interval{Start: iv.Start.Add(-before), End: iv.End.Add(after)}
}

// Merge returns the sorted union of the given intervals: ascending by
// start, overlapping or touching spans coalesced.
func Merge(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := make([]Interval, 0, len(sorted))
	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if iv.Start.After(cur.End) {
			out = append(out, cur)
			cur = iv
			continue
		}
		if iv.End.After(cur.End) {
			cur.End = iv.End
		}
	}
	return append(out, cur)
}

// Subtract removes every busy interval from the free set and returns the
// ordered, non-overlapping remainder.
func Subtract(free, busy []Interval) []Interval {
	remaining := Merge(free)
	for _, b := range Merge(busy) {
		var next []Interval
		for _, f := range remaining {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if b.Start.After(f.Start) {
				next = append(next, Interval{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, Interval{Start: b.End, End: f.End})
			}
		}
		remaining = next
	}
	return remaining
}
