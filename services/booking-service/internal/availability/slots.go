package availability

import (
	"iter"
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/interval"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

// SlotRequest carries everything slot generation needs. Busy must already
// hold the buffer-expanded occupied spans of the professional's active
// bookings; Open comes from ResolveDay.
type SlotRequest struct {
	Open    []interval.Interval
	Busy    []interval.Interval
	Service model.ServicePolicy

	// Grid step between candidate starts.
	Granularity time.Duration

	// Advance-booking window. Candidates before NotBefore or after
	// NotAfter are dropped. Zero values disable the respective bound.
	NotBefore time.Time
	NotAfter  time.Time
}

// Slots returns the bookable start times as a lazy ascending sequence.
// The sequence is finite, restartable, and has no side effects: identical
// inputs always yield the identical sequence, which is what the coordinator
// relies on when it revalidates a requested slot at commit time.
//
// Within each free span, candidates step at Granularity from the span
// start; a candidate survives when the service fits including its buffers,
// so start-bufferBefore stays inside the span and start+duration+bufferAfter
// does not run past its end.
func Slots(req SlotRequest) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if req.Granularity <= 0 || req.Service.DurationMins <= 0 {
			return
		}
		dur := req.Service.Duration()
		before := req.Service.BufferBeforeDuration()
		after := req.Service.BufferAfterDuration()

		for _, free := range interval.Subtract(req.Open, req.Busy) {
			for start := free.Start; ; start = start.Add(req.Granularity) {
				if start.Sub(free.Start) < before {
					continue
				}
				if start.Add(dur + after).After(free.End) {
					break
				}
				if !req.NotAfter.IsZero() && start.After(req.NotAfter) {
					return
				}
				if !req.NotBefore.IsZero() && start.Before(req.NotBefore) {
					continue
				}
				if !yield(start) {
					return
				}
			}
		}
	}
}
