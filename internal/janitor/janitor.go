// Package janitor prunes old delivery-history rows on a cron schedule.
//
// Each cycle deletes rows older than the retention window in bounded
// batches until a batch comes back short. A database error aborts the
// cycle; the next scheduled run picks up where it left off.
package janitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Store defines the retention interface over the delivery history.
type Store interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time, batch int) (int64, error)
}

// Config holds janitor configuration.
type Config struct {
	// Schedule is a standard 5-field cron expression.
	// Default: daily at 03:00.
	Schedule string

	// Retention is how long delivery records are kept.
	// Default: 30 days.
	Retention time.Duration

	// BatchSize caps how many rows one DELETE removes.
	// Default: 500.
	BatchSize int
}

// DefaultConfig returns the default janitor configuration.
func DefaultConfig() Config {
	return Config{
		Schedule:  "0 3 * * *",
		Retention: 30 * 24 * time.Hour,
		BatchSize: 500,
	}
}

type Janitor struct {
	config   Config
	store    Store
	schedule cron.Schedule
	clock    func() time.Time
}

func New(config Config, store Store) (*Janitor, error) {
	if config.Schedule == "" {
		config.Schedule = DefaultConfig().Schedule
	}
	if config.Retention <= 0 {
		config.Retention = DefaultConfig().Retention
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}

	schedule, err := cron.ParseStandard(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse janitor schedule %q: %w", config.Schedule, err)
	}

	return &Janitor{
		config:   config,
		store:    store,
		schedule: schedule,
		clock:    time.Now,
	}, nil
}

// Run executes purge cycles on the configured schedule. It blocks until ctx
// is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	log.Printf("janitor: started (schedule=%q, retention=%s, batch=%d)",
		j.config.Schedule, j.config.Retention, j.config.BatchSize)

	for {
		next := j.schedule.Next(j.clock())
		timer := time.NewTimer(next.Sub(j.clock()))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("janitor: stopped")
			return
		case <-timer.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle purges expired rows in batches until the store runs dry.
func (j *Janitor) runCycle(ctx context.Context) {
	cutoff := j.clock().Add(-j.config.Retention)

	var total int64
	for {
		if ctx.Err() != nil {
			log.Printf("janitor: cycle interrupted, purged=%d", total)
			return
		}

		n, err := j.store.PurgeOlderThan(ctx, cutoff, j.config.BatchSize)
		if err != nil {
			log.Printf("janitor: purge failed after %d rows: %v", total, err)
			return
		}
		total += n

		if n < int64(j.config.BatchSize) {
			break
		}
	}

	if total > 0 {
		log.Printf("janitor: purged %d delivery records older than %s", total, cutoff.Format(time.RFC3339))
	}
}
