package feed

import (
	"testing"
	"time"
)

var receivedAt = time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC)

func TestDecodeVehicleChange_FullPayload(t *testing.T) {
	data := []byte(`{"key":"51H-12345","alertFlag":true,"timeExpired":"2025-07-26 19:40:45"}`)

	change, err := DecodeVehicleChange(data, receivedAt)
	if err != nil {
		t.Fatalf("DecodeVehicleChange failed: %v", err)
	}
	if change.Key != "51H-12345" {
		t.Errorf("Key = %q, want 51H-12345", change.Key)
	}
	if change.AlertFlag == nil || *change.AlertFlag != true {
		t.Errorf("AlertFlag = %v, want true", change.AlertFlag)
	}
	if change.ExpiresAt == nil || *change.ExpiresAt != "2025-07-26 19:40:45" {
		t.Errorf("ExpiresAt = %v, want 2025-07-26 19:40:45", change.ExpiresAt)
	}
}

func TestDecodeVehicleChange_NonBooleanFlagDropped(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"string flag", `{"key":"51H-12345","alertFlag":"yes"}`},
		{"numeric flag", `{"key":"51H-12345","alertFlag":1}`},
		{"null flag", `{"key":"51H-12345","alertFlag":null}`},
		{"absent flag", `{"key":"51H-12345"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, err := DecodeVehicleChange([]byte(tt.data), receivedAt)
			if err != nil {
				t.Fatalf("DecodeVehicleChange failed: %v", err)
			}
			if change.AlertFlag != nil {
				t.Errorf("AlertFlag = %v, want nil", *change.AlertFlag)
			}
		})
	}
}

func TestDecodeVehicleChange_BadFlagKeepsExpiry(t *testing.T) {
	data := []byte(`{"key":"51H-12345","alertFlag":"x","timeExpired":"2025-07-26 19:40:45"}`)

	change, err := DecodeVehicleChange(data, receivedAt)
	if err != nil {
		t.Fatalf("DecodeVehicleChange failed: %v", err)
	}
	if change.ExpiresAt == nil {
		t.Error("dropping a bad alertFlag must not drop timeExpired")
	}
}

func TestDecodeVehicleChange_Invalid(t *testing.T) {
	for _, data := range []string{``, `{`, `{"alertFlag":true}`, `{"key":""}`} {
		if _, err := DecodeVehicleChange([]byte(data), receivedAt); err == nil {
			t.Errorf("DecodeVehicleChange(%q) should fail", data)
		}
	}
}

func TestDecodeDeadlineChange(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string // "" means cleared
	}{
		{"quoted value", `"18:30:00"`, "18:30:00"},
		{"bare value", `18:30:00`, "18:30:00"},
		{"null clears", `null`, ""},
		{"empty clears", ``, ""},
		{"whitespace clears", `   `, ""},
		{"empty string clears", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := DecodeDeadlineChange([]byte(tt.data), receivedAt)
			if tt.want == "" {
				if change.Value != nil {
					t.Errorf("Value = %q, want nil", *change.Value)
				}
				return
			}
			if change.Value == nil || *change.Value != tt.want {
				t.Errorf("Value = %v, want %q", change.Value, tt.want)
			}
		})
	}
}
