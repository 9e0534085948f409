package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func pendingBooking(start time.Time) model.Booking {
	return model.Booking{
		ID:             "bk-1",
		Code:           "BK20250602AB3D",
		BusinessID:     "biz-1",
		CustomerID:     "cust-1",
		ProfessionalID: "pro-1",
		ServiceID:      "svc-1",
		StartTime:      start,
		EndTime:        start.Add(30 * time.Minute),
		OccupiedStart:  start,
		OccupiedEnd:    start.Add(30 * time.Minute),
		Status:         model.StatusPending,
	}
}

func TestConfirm(t *testing.T) {
	b := pendingBooking(testNow.Add(24 * time.Hour))
	ev, err := Confirm(&b, Actor{ID: "staff-1", Staff: true}, testNow)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", b.Status)
	}
	if b.ConfirmedAt == nil || !b.ConfirmedAt.Equal(testNow) {
		t.Fatalf("ConfirmedAt = %v, want %v", b.ConfirmedAt, testNow)
	}
	if ev.From != model.StatusPending || ev.To != model.StatusConfirmed {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Type() != "booking.confirmed.v1" {
		t.Fatalf("event type = %s", ev.Type())
	}

	// Confirming twice is illegal.
	if _, err := Confirm(&b, Actor{ID: "staff-1", Staff: true}, testNow); err == nil {
		t.Fatal("double confirm succeeded")
	}
}

func TestCancelNoticeWindow(t *testing.T) {
	notice := 24 * time.Hour
	start := testNow.Add(20 * time.Hour) // inside the notice window

	t.Run("customer inside window fails", func(t *testing.T) {
		b := pendingBooking(start)
		_, err := Cancel(&b, Actor{ID: "cust-1"}, "changed plans", notice, testNow)
		var winErr *CancellationWindowError
		if !errors.As(err, &winErr) {
			t.Fatalf("got %v, want CancellationWindowError", err)
		}
		if want := start.Add(-notice); !winErr.Deadline.Equal(want) {
			t.Fatalf("deadline = %v, want %v", winErr.Deadline, want)
		}
		var trErr *TransitionError
		if !errors.As(err, &trErr) {
			t.Fatal("CancellationWindowError does not unwrap to TransitionError")
		}
		if b.Status != model.StatusPending {
			t.Fatalf("booking mutated on failed cancel: %s", b.Status)
		}
	})

	t.Run("staff bypasses window", func(t *testing.T) {
		b := pendingBooking(start)
		ev, err := Cancel(&b, Actor{ID: "staff-1", Staff: true}, "professional is out sick", notice, testNow)
		if err != nil {
			t.Fatalf("staff cancel: %v", err)
		}
		if b.Status != model.StatusCancelled || b.CancelledBy != "staff-1" {
			t.Fatalf("booking = %+v", b)
		}
		if ev.Reason != "professional is out sick" {
			t.Fatalf("event reason = %q", ev.Reason)
		}
	})

	t.Run("customer outside window succeeds", func(t *testing.T) {
		b := pendingBooking(testNow.Add(48 * time.Hour))
		if _, err := Cancel(&b, Actor{ID: "cust-1"}, "", notice, testNow); err != nil {
			t.Fatalf("cancel with ample notice: %v", err)
		}
	})

	t.Run("terminal states reject cancel", func(t *testing.T) {
		b := pendingBooking(start)
		b.Status = model.StatusCompleted
		if _, err := Cancel(&b, Actor{ID: "staff-1", Staff: true}, "", notice, testNow); err == nil {
			t.Fatal("cancelled a completed booking")
		}
	})
}

func TestComplete(t *testing.T) {
	b := pendingBooking(testNow.Add(-2 * time.Hour))
	b.Status = model.StatusConfirmed

	if _, err := Complete(&b, Actor{ID: "staff-1", Staff: true}, b.EndTime.Add(-time.Minute)); err == nil {
		t.Fatal("completed before end time")
	}

	ev, err := Complete(&b, Actor{ID: "staff-1", Staff: true}, testNow)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if b.Status != model.StatusCompleted {
		t.Fatalf("status = %s", b.Status)
	}
	if b.Attended == nil || !*b.Attended {
		t.Fatal("attendance flag not set")
	}
	if ev.To != model.StatusCompleted {
		t.Fatalf("event = %+v", ev)
	}
}

func TestMarkNoShow(t *testing.T) {
	start := testNow.Add(time.Hour)
	b := pendingBooking(start)
	b.Status = model.StatusConfirmed

	if _, err := MarkNoShow(&b, Actor{ID: "staff-1", Staff: true}, testNow); err == nil {
		t.Fatal("no-show before start time")
	}

	if _, err := MarkNoShow(&b, Actor{ID: "staff-1", Staff: true}, start.Add(10*time.Minute)); err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	if b.Status != model.StatusNoShow {
		t.Fatalf("status = %s", b.Status)
	}
	if b.Attended == nil || *b.Attended {
		t.Fatal("attendance flag should be false")
	}
}

func TestMarkRescheduled(t *testing.T) {
	b := pendingBooking(testNow.Add(48 * time.Hour))
	if _, err := MarkRescheduled(&b, Actor{ID: "cust-1"}, testNow); err != nil {
		t.Fatalf("MarkRescheduled: %v", err)
	}
	if b.Status != model.StatusRescheduled || !b.Status.IsTerminal() {
		t.Fatalf("status = %s", b.Status)
	}
	if _, err := MarkRescheduled(&b, Actor{ID: "cust-1"}, testNow); err == nil {
		t.Fatal("rescheduled a rescheduled booking")
	}
}

type fakeStore struct {
	bookings map[string]model.Booking
	commits  []Event
	getErr   error
}

func (s *fakeStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	if s.getErr != nil {
		return model.Booking{}, s.getErr
	}
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, errors.New("booking not found")
	}
	return b, nil
}

func (s *fakeStore) CommitTransition(_ context.Context, b model.Booking, ev Event) error {
	s.bookings[b.ID] = b
	s.commits = append(s.commits, ev)
	return nil
}

type fakePolicies struct {
	policy model.BusinessPolicy
}

func (p *fakePolicies) BusinessPolicy(context.Context, string) (model.BusinessPolicy, error) {
	return p.policy, nil
}

func newTestManager(store *fakeStore) *Manager {
	m := NewManager(store, &fakePolicies{policy: model.DefaultBusinessPolicy("biz-1")}, slog.New(slog.DiscardHandler))
	m.now = func() time.Time { return testNow }
	return m
}

func TestManagerTransition(t *testing.T) {
	b := pendingBooking(testNow.Add(48 * time.Hour))
	store := &fakeStore{bookings: map[string]model.Booking{b.ID: b}}
	m := newTestManager(store)

	got, err := m.Transition(context.Background(), b.ID, ActionConfirm, Actor{ID: "staff-1", Staff: true}, "")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != model.StatusConfirmed {
		t.Fatalf("status = %s", got.Status)
	}
	if len(store.commits) != 1 || store.commits[0].Action != ActionConfirm {
		t.Fatalf("commits = %+v", store.commits)
	}
	if persisted := store.bookings[b.ID]; persisted.Status != model.StatusConfirmed {
		t.Fatalf("persisted status = %s", persisted.Status)
	}
}

func TestManagerCancelAppliesBusinessNotice(t *testing.T) {
	// Default policy has a 24 hour notice; booking starts in 20.
	b := pendingBooking(testNow.Add(20 * time.Hour))
	store := &fakeStore{bookings: map[string]model.Booking{b.ID: b}}
	m := newTestManager(store)

	_, err := m.Transition(context.Background(), b.ID, ActionCancel, Actor{ID: "cust-1"}, "conflict came up")
	var winErr *CancellationWindowError
	if !errors.As(err, &winErr) {
		t.Fatalf("got %v, want CancellationWindowError", err)
	}
	if len(store.commits) != 0 {
		t.Fatal("failed cancel was committed")
	}

	if _, err := m.Transition(context.Background(), b.ID, ActionCancel, Actor{ID: "staff-1", Staff: true}, "professional unavailable"); err != nil {
		t.Fatalf("staff cancel: %v", err)
	}
}

func TestManagerRejectsRescheduleAction(t *testing.T) {
	b := pendingBooking(testNow.Add(48 * time.Hour))
	store := &fakeStore{bookings: map[string]model.Booking{b.ID: b}}
	m := newTestManager(store)

	_, err := m.Transition(context.Background(), b.ID, ActionReschedule, Actor{ID: "cust-1"}, "")
	var trErr *TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("got %v, want TransitionError", err)
	}
}

func TestParseAction(t *testing.T) {
	if a, ok := ParseAction("confirm"); !ok || a != ActionConfirm {
		t.Fatalf("ParseAction(confirm) = %v, %v", a, ok)
	}
	if _, ok := ParseAction("explode"); ok {
		t.Fatal("unknown action accepted")
	}
}
