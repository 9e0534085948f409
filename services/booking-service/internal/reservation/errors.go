package reservation

import (
	"errors"
	"fmt"
)

// ErrSlotConflict signals that the requested interval lost a commit race or
// overlaps an active booking. Retryable by the caller after refreshing the
// slot list; never escalated as a system fault. The message is shown to
// customers verbatim.
var ErrSlotConflict = errors.New("this slot is no longer available, please choose another")

// ErrNotFound is returned when a referenced booking does not exist or has
// been soft-deleted.
var ErrNotFound = errors.New("booking not found")

// PolicyError reports a user-correctable business-rule violation: the
// advance-booking window, the plan entitlement, or the professional simply
// not working at the requested time. Rule is a stable machine-readable
// identifier for the violated rule.
type PolicyError struct {
	Rule   string
	Detail string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Rule, e.Detail)
}

const (
	RuleMinAdvance   = "min_advance"
	RuleMaxAdvance   = "max_advance"
	RuleUnavailable  = "professional_unavailable"
	RulePlanLimit    = "plan_booking_limit"
	RulePlanInactive = "plan_inactive"
)

func policyErr(rule, format string, args ...any) *PolicyError {
	return &PolicyError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}
