package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

// BookingStore is the persistence surface the manager needs. The
// implementation commits the updated booking, the transition event for the
// outbox, and the customer statistics deltas in a single transaction.
type BookingStore interface {
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	CommitTransition(ctx context.Context, b model.Booking, ev Event) error
}

// PolicyProvider resolves the per-business booking configuration.
type PolicyProvider interface {
	BusinessPolicy(ctx context.Context, businessID string) (model.BusinessPolicy, error)
}

type Manager struct {
	store    BookingStore
	policies PolicyProvider
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(store BookingStore, policies PolicyProvider, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		policies: policies,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Transition applies a lifecycle action to a booking and persists the
// result. The transition decision is made on the freshly loaded row; the
// store's commit is conditional on the status it read, so a concurrent
// transition surfaces as a conflict rather than a lost update.
func (m *Manager) Transition(ctx context.Context, bookingID string, action Action, actor Actor, reason string) (model.Booking, error) {
	b, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load booking: %w", err)
	}

	now := m.now()
	var ev Event
	switch action {
	case ActionConfirm:
		ev, err = Confirm(&b, actor, now)
	case ActionBegin:
		ev, err = Begin(&b, actor, now)
	case ActionComplete:
		ev, err = Complete(&b, actor, now)
	case ActionCancel:
		var pol model.BusinessPolicy
		pol, err = m.policies.BusinessPolicy(ctx, b.BusinessID)
		if err != nil {
			return model.Booking{}, fmt.Errorf("load business policy: %w", err)
		}
		ev, err = Cancel(&b, actor, reason, pol.CancellationNotice(), now)
	case ActionNoShow:
		ev, err = MarkNoShow(&b, actor, now)
	case ActionReschedule:
		err = transitionErr(b, action, "rescheduling requires a replacement slot, use the reschedule operation")
	default:
		err = transitionErr(b, action, "unknown action")
	}
	if err != nil {
		return model.Booking{}, err
	}

	b.Audit.UpdatedAt = now
	if err := m.store.CommitTransition(ctx, b, ev); err != nil {
		return model.Booking{}, fmt.Errorf("commit transition: %w", err)
	}
	m.logger.InfoContext(ctx, "booking transition applied",
		"booking_id", b.ID,
		"action", string(action),
		"from", string(ev.From),
		"to", string(ev.To),
		"actor_id", actor.ID,
		"staff", actor.Staff)
	return b, nil
}
