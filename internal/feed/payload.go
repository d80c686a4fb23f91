package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

// DecodeVehicleChange validates a raw vehicle-record payload:
//
//	{"key": "51H-12345", "alertFlag": true, "timeExpired": "2025-07-26 19:40:45"}
//
// A missing key is fatal for the payload. A non-boolean alertFlag or
// non-string timeExpired drops that field only, with a diagnostic, so the
// other field is still delivered.
func DecodeVehicleChange(data []byte, receivedAt time.Time) (domain.VehicleChange, error) {
	var raw struct {
		Key         string          `json:"key"`
		AlertFlag   json.RawMessage `json:"alertFlag"`
		TimeExpired json.RawMessage `json:"timeExpired"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.VehicleChange{}, fmt.Errorf("decode vehicle payload: %w", err)
	}
	if raw.Key == "" {
		return domain.VehicleChange{}, fmt.Errorf("vehicle payload has no key")
	}

	change := domain.VehicleChange{
		Key:        domain.VehicleKey(raw.Key),
		ReceivedAt: receivedAt,
	}

	if present(raw.AlertFlag) {
		var flag bool
		if err := json.Unmarshal(raw.AlertFlag, &flag); err != nil {
			log.Printf("feed: vehicle=%s dropped non-boolean alertFlag %s", raw.Key, raw.AlertFlag)
		} else {
			change.AlertFlag = &flag
		}
	}

	if present(raw.TimeExpired) {
		var expires string
		if err := json.Unmarshal(raw.TimeExpired, &expires); err != nil {
			log.Printf("feed: vehicle=%s dropped non-string timeExpired %s", raw.Key, raw.TimeExpired)
		} else {
			change.ExpiresAt = &expires
		}
	}

	return change, nil
}

// DecodeDeadlineChange validates a shared-deadline payload. The value is a
// bare or JSON-quoted "HH:mm:ss" string; empty or null clears the deadline.
func DecodeDeadlineChange(data []byte, receivedAt time.Time) domain.DeadlineChange {
	change := domain.DeadlineChange{ReceivedAt: receivedAt}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return change
	}

	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		value = trimmed
	}
	if value == "" {
		return change
	}

	change.Value = &value
	return change
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
