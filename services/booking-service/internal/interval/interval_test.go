package interval

import (
	"errors"
	"testing"
	"time"
)

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2025-06-02 "+hhmm)
	if err != nil {
		t.Fatalf("parse %q: %v", hhmm, err)
	}
	return ts.UTC()
}

func iv(t *testing.T, start, end string) Interval {
	t.Helper()
	out, err := New(at(t, start), at(t, end))
	if err != nil {
		t.Fatalf("New(%s, %s): %v", start, end, err)
	}
	return out
}

func TestNewRejectsDegenerateIntervals(t *testing.T) {
	start := at(t, "10:00")
	for _, end := range []time.Time{start, start.Add(-time.Minute), {}} {
		if _, err := New(start, end); !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("New(%s, %s): got %v, want ErrInvalidInterval", start, end, err)
		}
	}
	if _, err := New(time.Time{}, start); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("zero start accepted: %v", err)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	a := iv(t, "09:00", "10:00")
	cases := []struct {
		name string
		b    Interval
		want bool
	}{
		{"back to back after", iv(t, "10:00", "11:00"), false},
		{"back to back before", iv(t, "08:00", "09:00"), false},
		{"one minute overlap", iv(t, "09:59", "11:00"), true},
		{"contained", iv(t, "09:15", "09:45"), true},
		{"containing", iv(t, "08:00", "12:00"), true},
		{"identical", iv(t, "09:00", "10:00"), true},
		{"disjoint", iv(t, "13:00", "14:00"), false},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Fatalf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
		if got := tc.b.Overlaps(a); got != tc.want {
			t.Fatalf("%s: Overlaps not symmetric", tc.name)
		}
	}
}

func TestContains(t *testing.T) {
	outer := iv(t, "09:00", "17:00")
	if !outer.Contains(iv(t, "09:00", "17:00")) {
		t.Fatal("interval should contain itself")
	}
	if !outer.Contains(iv(t, "10:00", "11:00")) {
		t.Fatal("inner interval not contained")
	}
	if outer.Contains(iv(t, "08:59", "10:00")) {
		t.Fatal("interval starting earlier reported as contained")
	}
	if outer.Contains(iv(t, "16:00", "17:01")) {
		t.Fatal("interval ending later reported as contained")
	}
}

func TestExpand(t *testing.T) {
	got := iv(t, "10:00", "11:00").Expand(10*time.Minute, 5*time.Minute)
	want := iv(t, "09:50", "11:05")
	if !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
		t.Fatalf("Expand = %v, want %v", got, want)
	}
}

func TestMergeCoalescesOverlapsAndTouches(t *testing.T) {
	in := []Interval{
		iv(t, "13:00", "14:00"),
		iv(t, "09:00", "10:00"),
		iv(t, "10:00", "11:00"), // touches the previous one
		iv(t, "09:30", "10:30"),
		iv(t, "16:00", "16:30"),
	}
	got := Merge(in)
	want := []Interval{iv(t, "09:00", "11:00"), iv(t, "13:00", "14:00"), iv(t, "16:00", "16:30")}
	assertEqual(t, got, want)
}

func TestMergeEmpty(t *testing.T) {
	if got := Merge(nil); got != nil {
		t.Fatalf("Merge(nil) = %v, want nil", got)
	}
}

func TestSubtract(t *testing.T) {
	free := []Interval{iv(t, "09:00", "17:00")}

	t.Run("busy splits the middle", func(t *testing.T) {
		got := Subtract(free, []Interval{iv(t, "12:00", "13:00")})
		assertEqual(t, got, []Interval{iv(t, "09:00", "12:00"), iv(t, "13:00", "17:00")})
	})

	t.Run("busy clips the edges", func(t *testing.T) {
		got := Subtract(free, []Interval{iv(t, "08:00", "09:30"), iv(t, "16:30", "18:00")})
		assertEqual(t, got, []Interval{iv(t, "09:30", "16:30")})
	})

	t.Run("busy covers everything", func(t *testing.T) {
		if got := Subtract(free, []Interval{iv(t, "08:00", "18:00")}); len(got) != 0 {
			t.Fatalf("got %v, want empty", got)
		}
	})

	t.Run("busy outside free is a no-op", func(t *testing.T) {
		got := Subtract(free, []Interval{iv(t, "18:00", "19:00")})
		assertEqual(t, got, free)
	})

	t.Run("multiple free spans", func(t *testing.T) {
		split := []Interval{iv(t, "09:00", "12:00"), iv(t, "13:00", "17:00")}
		got := Subtract(split, []Interval{iv(t, "11:00", "14:00")})
		assertEqual(t, got, []Interval{iv(t, "09:00", "11:00"), iv(t, "14:00", "17:00")})
	})
}

func assertEqual(t *testing.T, got, want []Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d intervals %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("interval %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
