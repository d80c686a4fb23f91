package redisfeed

import "testing"

func TestNew_Defaults(t *testing.T) {
	f := New(nil, Config{})

	if f.config.VehicleChannel != "platevision:vehicles" {
		t.Errorf("VehicleChannel = %q", f.config.VehicleChannel)
	}
	if f.config.DeadlineChannel != "platevision:deadline" {
		t.Errorf("DeadlineChannel = %q", f.config.DeadlineChannel)
	}
	if f.config.ActiveSetKey != "platevision:active" {
		t.Errorf("ActiveSetKey = %q", f.config.ActiveSetKey)
	}
	if cap(f.vehicles) != 100 || cap(f.deadlines) != 100 {
		t.Errorf("buffer caps = %d/%d, want 100/100", cap(f.vehicles), cap(f.deadlines))
	}
}

func TestNew_ConfigOverrides(t *testing.T) {
	f := New(nil, Config{
		VehicleChannel:  "v",
		DeadlineChannel: "d",
		ActiveSetKey:    "a",
		Buffer:          7,
	})

	if f.config.VehicleChannel != "v" || f.config.DeadlineChannel != "d" || f.config.ActiveSetKey != "a" {
		t.Errorf("config overrides not applied: %+v", f.config)
	}
	if cap(f.vehicles) != 7 {
		t.Errorf("buffer cap = %d, want 7", cap(f.vehicles))
	}
}
