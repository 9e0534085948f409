package availability

import (
	"testing"
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/interval"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

func weekday(d time.Weekday) *time.Weekday { return &d }

func recurring(d time.Weekday, startMin, endMin int, available bool) model.AvailabilityRule {
	return model.AvailabilityRule{
		ID:             "rule-recurring",
		ProfessionalID: "pro-1",
		Weekday:        weekday(d),
		StartMinute:    startMin,
		EndMinute:      endMin,
		Available:      available,
	}
}

func dated(date string, startMin, endMin int, available bool) model.AvailabilityRule {
	return model.AvailabilityRule{
		ID:             "rule-dated",
		ProfessionalID: "pro-1",
		Date:           date,
		StartMinute:    startMin,
		EndMinute:      endMin,
		Available:      available,
	}
}

// 2025-06-02 is a Monday.
func monday(t *testing.T) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", "2025-06-02", time.UTC)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func TestResolveDayRecurring(t *testing.T) {
	day := monday(t)
	rules := []model.AvailabilityRule{
		recurring(time.Monday, 9*60, 17*60, true),
		recurring(time.Tuesday, 8*60, 12*60, true), // wrong weekday
	}
	open := ResolveDay(rules, day)
	if len(open) != 1 {
		t.Fatalf("got %d open intervals, want 1: %v", len(open), open)
	}
	wantStart := day.Add(9 * time.Hour)
	wantEnd := day.Add(17 * time.Hour)
	if !open[0].Start.Equal(wantStart) || !open[0].End.Equal(wantEnd) {
		t.Fatalf("open = %v, want [%v, %v)", open[0], wantStart, wantEnd)
	}
}

func TestResolveDayMergesOverlappingRules(t *testing.T) {
	day := monday(t)
	rules := []model.AvailabilityRule{
		recurring(time.Monday, 9*60, 13*60, true),
		recurring(time.Monday, 12*60, 17*60, true),
	}
	open := ResolveDay(rules, day)
	if len(open) != 1 {
		t.Fatalf("overlapping rules not merged: %v", open)
	}
	if !open[0].Start.Equal(day.Add(9*time.Hour)) || !open[0].End.Equal(day.Add(17*time.Hour)) {
		t.Fatalf("merged window = %v", open[0])
	}
}

func TestResolveDayBlockedWindowSplitsDay(t *testing.T) {
	day := monday(t)
	rules := []model.AvailabilityRule{
		recurring(time.Monday, 9*60, 17*60, true),
		recurring(time.Monday, 12*60, 13*60, false), // lunch
	}
	open := ResolveDay(rules, day)
	if len(open) != 2 {
		t.Fatalf("got %v, want two intervals around the lunch block", open)
	}
	if !open[0].End.Equal(day.Add(12*time.Hour)) || !open[1].Start.Equal(day.Add(13*time.Hour)) {
		t.Fatalf("lunch block not carved out: %v", open)
	}
}

func TestResolveDayDateSpecificOverridesRecurring(t *testing.T) {
	day := monday(t)
	rules := []model.AvailabilityRule{
		recurring(time.Monday, 9*60, 17*60, true),
		dated("2025-06-02", 10*60, 14*60, true),
	}
	open := ResolveDay(rules, day)
	if len(open) != 1 {
		t.Fatalf("got %v, want single override window", open)
	}
	if !open[0].Start.Equal(day.Add(10*time.Hour)) || !open[0].End.Equal(day.Add(14*time.Hour)) {
		t.Fatalf("override window = %v, want [10:00, 14:00)", open[0])
	}
}

func TestResolveDayDateSpecificClosure(t *testing.T) {
	day := monday(t)
	rules := []model.AvailabilityRule{
		recurring(time.Monday, 9*60, 17*60, true),
		dated("2025-06-02", 0, 24*60, false),
	}
	if open := ResolveDay(rules, day); len(open) != 0 {
		t.Fatalf("date-specific closure did not black out the day: %v", open)
	}
}

func TestResolveDayIgnoresDeletedRules(t *testing.T) {
	day := monday(t)
	deleted := recurring(time.Monday, 9*60, 17*60, true)
	now := time.Now().UTC()
	model.SoftDelete(&deleted.Audit, now)
	if open := ResolveDay([]model.AvailabilityRule{deleted}, day); len(open) != 0 {
		t.Fatalf("deleted rule still resolved: %v", open)
	}
}

func TestResolveDayIdempotent(t *testing.T) {
	day := monday(t)
	rules := []model.AvailabilityRule{recurring(time.Monday, 9*60, 17*60, true)}
	first := ResolveDay(rules, day)
	for i := 0; i < 5; i++ {
		again := ResolveDay(rules, day)
		if len(again) != len(first) || !again[0].Start.Equal(first[0].Start) || !again[0].End.Equal(first[0].End) {
			t.Fatalf("call %d: %v, want %v", i, again, first)
		}
	}
}

func collect(seq func(func(time.Time) bool)) []time.Time {
	var out []time.Time
	seq(func(ts time.Time) bool {
		out = append(out, ts)
		return true
	})
	return out
}

func TestSlotsFullDayGrid(t *testing.T) {
	day := monday(t)
	open := ResolveDay([]model.AvailabilityRule{recurring(time.Monday, 9*60, 17*60, true)}, day)

	slots := collect(Slots(SlotRequest{
		Open:        open,
		Service:     model.ServicePolicy{ServiceID: "svc-1", DurationMins: 30},
		Granularity: 15 * time.Minute,
	}))

	// 09:00 through 16:30 inclusive, every 15 minutes.
	if len(slots) != 31 {
		t.Fatalf("got %d slots, want 31", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("first slot = %v, want 09:00", slots[0])
	}
	last := slots[len(slots)-1]
	if !last.Equal(day.Add(16*time.Hour + 30*time.Minute)) {
		t.Fatalf("last slot = %v, want 16:30", last)
	}
	for i := 1; i < len(slots); i++ {
		if got := slots[i].Sub(slots[i-1]); got != 15*time.Minute {
			t.Fatalf("slot %d not on the 15-minute grid: gap %v", i, got)
		}
	}
}

func TestSlotsExcludeOccupiedSpans(t *testing.T) {
	day := monday(t)
	open := ResolveDay([]model.AvailabilityRule{recurring(time.Monday, 9*60, 17*60, true)}, day)
	busy, err := interval.New(day.Add(10*time.Hour), day.Add(10*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("busy interval: %v", err)
	}

	slots := collect(Slots(SlotRequest{
		Open:        open,
		Busy:        []interval.Interval{busy},
		Service:     model.ServicePolicy{ServiceID: "svc-1", DurationMins: 30},
		Granularity: 15 * time.Minute,
	}))

	have := make(map[string]bool, len(slots))
	for _, s := range slots {
		have[s.Format("15:04")] = true
	}
	for _, excluded := range []string{"09:45", "10:00", "10:15"} {
		if have[excluded] {
			t.Fatalf("slot %s overlaps the 10:00-10:30 booking", excluded)
		}
	}
	for _, kept := range []string{"09:30", "10:30"} {
		if !have[kept] {
			t.Fatalf("slot %s should still be offered", kept)
		}
	}
}

func TestSlotsRespectBuffers(t *testing.T) {
	day := monday(t)
	open := ResolveDay([]model.AvailabilityRule{recurring(time.Monday, 9*60, 12*60, true)}, day)

	slots := collect(Slots(SlotRequest{
		Open:        open,
		Service:     model.ServicePolicy{ServiceID: "svc-1", DurationMins: 60, BufferBefore: 15, BufferAfter: 15},
		Granularity: 30 * time.Minute,
	}))

	// Buffer before pushes the first slot to 09:30; buffer after means an
	// 11:00 start would spill past 12:00.
	if len(slots) != 3 {
		t.Fatalf("got %v, want exactly 09:30, 10:00 and 10:30", slots)
	}
	if !slots[0].Equal(day.Add(9*time.Hour+30*time.Minute)) || !slots[2].Equal(day.Add(10*time.Hour+30*time.Minute)) {
		t.Fatalf("slots = %v, want [09:30 10:00 10:30]", slots)
	}
}

func TestSlotsAdvanceWindow(t *testing.T) {
	day := monday(t)
	open := ResolveDay([]model.AvailabilityRule{recurring(time.Monday, 9*60, 17*60, true)}, day)

	slots := collect(Slots(SlotRequest{
		Open:        open,
		Service:     model.ServicePolicy{ServiceID: "svc-1", DurationMins: 30},
		Granularity: 30 * time.Minute,
		NotBefore:   day.Add(11 * time.Hour),
		NotAfter:    day.Add(14 * time.Hour),
	}))

	if len(slots) == 0 {
		t.Fatal("no slots inside the advance window")
	}
	if !slots[0].Equal(day.Add(11 * time.Hour)) {
		t.Fatalf("first slot = %v, want 11:00", slots[0])
	}
	if last := slots[len(slots)-1]; last.After(day.Add(14 * time.Hour)) {
		t.Fatalf("slot %v past the advance horizon", last)
	}
}

func TestSlotsSequenceIsRestartable(t *testing.T) {
	day := monday(t)
	open := ResolveDay([]model.AvailabilityRule{recurring(time.Monday, 9*60, 17*60, true)}, day)
	seq := Slots(SlotRequest{
		Open:        open,
		Service:     model.ServicePolicy{ServiceID: "svc-1", DurationMins: 30},
		Granularity: 15 * time.Minute,
	})

	first := collect(seq)
	second := collect(seq)
	if len(first) != len(second) {
		t.Fatalf("second pass yielded %d slots, first %d", len(second), len(first))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("slot %d differs across passes: %v vs %v", i, first[i], second[i])
		}
	}

	// Early termination must not disturb a fresh pass.
	var partial []time.Time
	seq(func(ts time.Time) bool {
		partial = append(partial, ts)
		return len(partial) < 3
	})
	if len(partial) != 3 {
		t.Fatalf("early stop yielded %d slots, want 3", len(partial))
	}
	if again := collect(seq); len(again) != len(first) {
		t.Fatalf("sequence not restartable after early stop: %d vs %d", len(again), len(first))
	}
}

func TestSlotsEmptyWhenClosed(t *testing.T) {
	day := monday(t)
	rules := []model.AvailabilityRule{
		recurring(time.Monday, 9*60, 17*60, true),
		dated("2025-06-02", 0, 24*60, false),
	}
	slots := collect(Slots(SlotRequest{
		Open:        ResolveDay(rules, day),
		Service:     model.ServicePolicy{ServiceID: "svc-1", DurationMins: 30},
		Granularity: 15 * time.Minute,
	}))
	if len(slots) != 0 {
		t.Fatalf("closed day still produced slots: %v", slots)
	}
}
