package timeline

import "testing"

func TestClockOrigin(t *testing.T) {
	clock := NewClock(96)

	if got := clock.Age(0); got != 22.0 {
		t.Fatalf("expected age 22.00 at post 0, got %.2f", got)
	}
	if got := clock.Day(0); got != 0 {
		t.Fatalf("expected day 0 at post 0, got %d", got)
	}
	if got := clock.Date(0).Format("2006-01-02"); got != "2025-01-01" {
		t.Fatalf("expected start date 2025-01-01, got %s", got)
	}
}

func TestClockAfterOneYear(t *testing.T) {
	clock := NewClock(96)

	if got := clock.Age(96); got != 23.0 {
		t.Fatalf("expected age 23.00 at post 96, got %.2f", got)
	}
	if got := clock.Day(96); got != 384 {
		t.Fatalf("expected day 384 at post 96, got %d", got)
	}
}

func TestAgeAdvancesOneYearPerCadence(t *testing.T) {
	clock := NewClock(96)
	for _, n := range []int{0, 1, 17, 95, 96, 500} {
		want := clock.Age(n) + 1
		if got := clock.Age(n + 96); got != want {
			t.Fatalf("age(%d+96) = %.4f, want %.4f", n, got, want)
		}
	}
}

func TestAgeAndDateMonotonic(t *testing.T) {
	clock := NewClock(96)
	for n := 1; n < 1000; n++ {
		if clock.Age(n) < clock.Age(n-1) {
			t.Fatalf("age decreased at post %d", n)
		}
		if clock.Date(n).Before(clock.Date(n - 1)) {
			t.Fatalf("date decreased at post %d", n)
		}
	}
}

func TestBirthdaySlots(t *testing.T) {
	clock := NewClock(96)

	if clock.IsBirthday(0) {
		t.Fatal("post 0 must not be a birthday")
	}
	if !clock.IsBirthday(96) {
		t.Fatal("post 96 must be a birthday")
	}
	if !clock.IsBirthday(192) {
		t.Fatal("post 192 must be a birthday")
	}
	if clock.IsBirthday(95) {
		t.Fatal("post 95 must not be a birthday")
	}
}

func TestTerminalBoundary(t *testing.T) {
	clock := NewClock(96)

	// Age 72 is reached exactly 50 simulated years in.
	terminal := 50 * 96
	if clock.IsTerminal(terminal - 1) {
		t.Fatalf("post %d must not be terminal", terminal-1)
	}
	if !clock.IsTerminal(terminal) {
		t.Fatalf("post %d must be terminal", terminal)
	}
}

func TestDefaultCadenceFallback(t *testing.T) {
	clock := NewClock(0)
	if clock.PostsPerYear != DefaultPostsPerYear {
		t.Fatalf("expected default cadence %d, got %d", DefaultPostsPerYear, clock.PostsPerYear)
	}
}
