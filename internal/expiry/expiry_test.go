package expiry

import (
	"testing"
	"time"
)

var ict = time.FixedZone("UTC+7", 7*60*60)

func TestParse_CivilTimeInFixedZone(t *testing.T) {
	got, err := Parse("2025-07-26 12:25:00", ict)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := time.Date(2025, 7, 26, 12, 25, 0, 0, ict)
	if !got.Equal(want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}

	// The instant must be fixed regardless of the host timezone:
	// 12:25 at +07:00 is 05:25 UTC.
	if utc := got.UTC(); utc.Hour() != 5 || utc.Minute() != 25 {
		t.Errorf("Parse in UTC = %v, want 05:25", utc)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, raw := range []string{"", "not a time", "2025-07-26T12:25:00", "26/07/2025 12:25"} {
		if _, err := Parse(raw, ict); err == nil {
			t.Errorf("Parse(%q) should fail", raw)
		}
	}
}

func TestEvaluate_WindowBoundaries(t *testing.T) {
	now := time.Date(2025, 7, 26, 12, 0, 0, 0, ict)

	tests := []struct {
		name      string
		expiresAt time.Time
		wantFire  bool
		wantMins  int
	}{
		{"25 minutes out", now.Add(25 * time.Minute), true, 25},
		{"exactly 30 minutes", now.Add(30 * time.Minute), true, 30},
		{"30 minutes 1 second", now.Add(30*time.Minute + time.Second), false, 0},
		{"exactly due", now, false, 0},
		{"already past", now.Add(-time.Minute), false, 0},
		{"one second left", now.Add(time.Second), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining, fire := Evaluate(tt.expiresAt, now)
			if fire != tt.wantFire {
				t.Errorf("Evaluate fire = %v, want %v", fire, tt.wantFire)
			}
			if fire && RemainingMinutes(remaining) != tt.wantMins {
				t.Errorf("RemainingMinutes = %d, want %d", RemainingMinutes(remaining), tt.wantMins)
			}
		})
	}
}

func TestEvaluate_ConcreteSpecCase(t *testing.T) {
	now := time.Date(2025, 7, 26, 12, 0, 0, 0, ict)

	expiresAt, err := Parse("2025-07-26 12:25:00", ict)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	remaining, fire := Evaluate(expiresAt, now)
	if !fire {
		t.Fatal("12:25 with now=12:00 should fire")
	}
	if RemainingMinutes(remaining) != 25 {
		t.Errorf("RemainingMinutes = %d, want 25", RemainingMinutes(remaining))
	}

	past, err := Parse("2025-07-26 11:59:00", ict)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, fire := Evaluate(past, now); fire {
		t.Error("11:59 with now=12:00 should not fire")
	}
}
