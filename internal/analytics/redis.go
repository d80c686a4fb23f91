// Package analytics counts emitted notification events in Redis, bucketed
// by hour. Counters feed operator dashboards; losing them is acceptable, so
// every failure is logged and swallowed.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

// DefaultRetention bounds how long counters live without refresh.
const DefaultRetention = 7 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, retention: DefaultRetention}
}

// WithRetention overrides the counter TTL.
func (s *RedisSink) WithRetention(d time.Duration) *RedisSink {
	if d > 0 {
		s.retention = d
	}
	return s
}

// Record increments the per-kind and per-vehicle counters for one event.
func (s *RedisSink) Record(ctx context.Context, event domain.Event) {
	kindKey := buildKindKey(event.Kind, event.FiredAt)
	vehicleKey := buildVehicleKey(event.Vehicle, event.Kind, event.FiredAt)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, kindKey)
	pipe.Expire(ctx, kindKey, s.retention)
	pipe.Incr(ctx, vehicleKey)
	pipe.Expire(ctx, vehicleKey, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}

func buildKindKey(kind domain.EventKind, t time.Time) string {
	return fmt.Sprintf("platevision:stats:kind:%s:%s", kind, hourBucket(t))
}

func buildVehicleKey(key domain.VehicleKey, kind domain.EventKind, t time.Time) string {
	return fmt.Sprintf("platevision:stats:vehicle:%s:%s:%s", key, kind, hourBucket(t))
}

func hourBucket(t time.Time) string {
	return t.UTC().Format("2006010215")
}
