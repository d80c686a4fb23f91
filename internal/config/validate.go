package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.RedisAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "REDIS_ADDR",
			Message: "required",
		})
	}

	if cfg.FirestoreProjectID == "" {
		errs = append(errs, ValidationError{
			Field:   "FIRESTORE_PROJECT_ID",
			Message: "required",
		})
	}

	if cfg.FCMServerKey == "" {
		errs = append(errs, ValidationError{
			Field:   "FCM_SERVER_KEY",
			Message: "required",
		})
	}

	if cfg.TickIntervalStr != "" {
		d, err := time.ParseDuration(cfg.TickIntervalStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "TICK_INTERVAL",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "TICK_INTERVAL",
				Message: "must be positive",
			})
		}
	}

	if cfg.TZOffsetHours < -12 || cfg.TZOffsetHours > 14 {
		errs = append(errs, ValidationError{
			Field:   "TZ_OFFSET_HOURS",
			Message: fmt.Sprintf("must be between -12 and 14, got %d", cfg.TZOffsetHours),
		})
	}

	if cfg.JanitorEnabled {
		if !cfg.HistoryEnabled() {
			errs = append(errs, ValidationError{
				Field:   "JANITOR_ENABLED",
				Message: "requires DATABASE_URL",
			})
		}
		if _, err := cron.ParseStandard(cfg.JanitorSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "JANITOR_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
