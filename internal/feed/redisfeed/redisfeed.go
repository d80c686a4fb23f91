// Package redisfeed implements the change-feed contract over Redis: the
// host publishes vehicle-record and deadline updates on pub/sub channels,
// and keeps the active vehicle set in a hash keyed by plate.
package redisfeed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
	"github.com/Toru2004/PlateVision-BE/internal/feed"
)

type Config struct {
	VehicleChannel  string // default "platevision:vehicles"
	DeadlineChannel string // default "platevision:deadline"
	ActiveSetKey    string // default "platevision:active"
	Buffer          int    // default 100
}

type Feed struct {
	client *redis.Client
	config Config
	clock  func() time.Time

	vehicles  chan domain.VehicleChange
	deadlines chan domain.DeadlineChange
	pubsub    *redis.PubSub
	done      chan struct{}
}

func New(client *redis.Client, config Config) *Feed {
	if config.VehicleChannel == "" {
		config.VehicleChannel = "platevision:vehicles"
	}
	if config.DeadlineChannel == "" {
		config.DeadlineChannel = "platevision:deadline"
	}
	if config.ActiveSetKey == "" {
		config.ActiveSetKey = "platevision:active"
	}
	if config.Buffer <= 0 {
		config.Buffer = 100
	}
	return &Feed{
		client:    client,
		config:    config,
		clock:     time.Now,
		vehicles:  make(chan domain.VehicleChange, config.Buffer),
		deadlines: make(chan domain.DeadlineChange, config.Buffer),
		done:      make(chan struct{}),
	}
}

// Start subscribes to both channels and begins routing messages. The feed
// runs until Close.
func (f *Feed) Start(ctx context.Context) error {
	f.pubsub = f.client.Subscribe(ctx, f.config.VehicleChannel, f.config.DeadlineChannel)

	// Force the subscription onto the wire before declaring readiness.
	if _, err := f.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	go f.route()

	log.Printf("feed: subscribed (vehicles=%s, deadline=%s)",
		f.config.VehicleChannel, f.config.DeadlineChannel)
	return nil
}

func (f *Feed) route() {
	defer close(f.done)

	for msg := range f.pubsub.Channel() {
		now := f.clock()
		switch msg.Channel {
		case f.config.VehicleChannel:
			change, err := feed.DecodeVehicleChange([]byte(msg.Payload), now)
			if err != nil {
				log.Printf("feed: dropped vehicle payload: %v", err)
				continue
			}
			f.deliverVehicle(change)
		case f.config.DeadlineChannel:
			f.deliverDeadline(feed.DecodeDeadlineChange([]byte(msg.Payload), now))
		}
	}
}

// deliverVehicle hands a change to the engine without ever blocking the
// pub/sub reader; a full buffer drops the change with a diagnostic.
func (f *Feed) deliverVehicle(change domain.VehicleChange) {
	select {
	case f.vehicles <- change:
	default:
		log.Printf("feed: vehicle buffer full, dropped change for %s", change.Key)
	}
}

func (f *Feed) deliverDeadline(change domain.DeadlineChange) {
	select {
	case f.deadlines <- change:
	default:
		log.Println("feed: deadline buffer full, dropped change")
	}
}

func (f *Feed) VehicleChanges() <-chan domain.VehicleChange {
	return f.vehicles
}

func (f *Feed) DeadlineChanges() <-chan domain.DeadlineChange {
	return f.deadlines
}

// ActiveVehicles reads the active-set hash; field names are vehicle keys.
func (f *Feed) ActiveVehicles(ctx context.Context) ([]domain.VehicleKey, error) {
	fields, err := f.client.HKeys(ctx, f.config.ActiveSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read active set: %w", err)
	}
	keys := make([]domain.VehicleKey, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, domain.VehicleKey(field))
	}
	return keys, nil
}

// Close cancels the subscription and ends both streams.
func (f *Feed) Close() error {
	if f.pubsub == nil {
		return nil
	}
	err := f.pubsub.Close()
	<-f.done
	close(f.vehicles)
	close(f.deadlines)
	return err
}
