package utility

import (
	"regexp"
	"testing"
	"time"
)

func TestDayKey(t *testing.T) {
	dayPattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	key := DayKey(time.Now())
	if !dayPattern.MatchString(key) {
		t.Errorf("DayKey() = %q, want YYYY-MM-DD", key)
	}
}

func TestDayKey_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	local := time.Date(2026, 3, 2, 5, 0, 0, 0, loc) // 2026-03-01 19:00 UTC

	if got := DayKey(local); got != "2026-03-01" {
		t.Errorf("DayKey() = %q, want %q", got, "2026-03-01")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 1, 2, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 1 {
		t.Errorf("DaysBetween() = %d, want 1", got)
	}
	if got := DaysBetween(a, a); got != 0 {
		t.Errorf("DaysBetween(same) = %d, want 0", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 1) != 1 {
		t.Error("Clamp should cap at hi")
	}
	if Clamp(-5, 0, 1) != 0 {
		t.Error("Clamp should floor at lo")
	}
	if Clamp(0.5, 0, 1) != 0.5 {
		t.Error("Clamp should pass through in-range values")
	}
}
