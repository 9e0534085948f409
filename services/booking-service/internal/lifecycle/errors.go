package lifecycle

import (
	"fmt"
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

// TransitionError reports an illegal lifecycle transition with the specific
// rule that was violated. It is returned to the caller as-is and never
// retried internally.
type TransitionError struct {
	From   model.BookingStatus
	Action Action
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s booking in status %s: %s", e.Action, e.From, e.Reason)
}

// CancellationWindowError is the TransitionError specialization for a
// customer cancelling inside the business's notice window. Deadline is the
// last instant at which the cancellation would have been accepted.
type CancellationWindowError struct {
	TransitionError
	Deadline time.Time
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("cancellation window closed at %s: %s", e.Deadline.Format(time.RFC3339), e.Reason)
}

func (e *CancellationWindowError) Unwrap() error {
	return &e.TransitionError
}

func transitionErr(b model.Booking, action Action, reason string) *TransitionError {
	return &TransitionError{From: b.Status, Action: action, Reason: reason}
}
