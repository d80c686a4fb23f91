// Package postgres persists the notification delivery history. The store is
// optional: when no database is configured the engine runs without an audit
// trail.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

const opTimeout = 5 * time.Second

// Store implements the engine's history sink and the janitor's retention
// store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a store over an existing database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the deliveries table and its indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryCreateDeliveries)
	return err
}

// RecordDelivery inserts one delivery record.
func (s *Store) RecordDelivery(ctx context.Context, rec domain.DeliveryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertDelivery,
		rec.ID,
		rec.EventID,
		string(rec.Kind),
		string(rec.Vehicle),
		rec.TokenCount,
		rec.Title,
		rec.Error,
		rec.SentAt,
	)
	return err
}

// ListByVehicle returns delivery records for a vehicle, newest first.
func (s *Store) ListByVehicle(ctx context.Context, key domain.VehicleKey, limit, offset int) ([]domain.DeliveryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListByVehicle, string(key), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DeliveryRecord
	for rows.Next() {
		var rec domain.DeliveryRecord
		var kind, vehicle string

		err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&kind,
			&vehicle,
			&rec.TokenCount,
			&rec.Title,
			&rec.Error,
			&rec.SentAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Kind = domain.EventKind(kind)
		rec.Vehicle = domain.VehicleKey(vehicle)
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// PurgeOlderThan deletes at most batch records sent before cutoff and
// returns how many were removed. The janitor calls this repeatedly until
// the count drops below the batch size.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time, batch int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryPurgeOlderThan, cutoff, batch)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
