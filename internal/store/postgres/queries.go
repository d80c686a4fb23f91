package postgres

const queryCreateDeliveries = `
CREATE TABLE IF NOT EXISTS deliveries (
    id          UUID PRIMARY KEY,
    event_id    UUID NOT NULL,
    kind        TEXT NOT NULL,
    vehicle     TEXT NOT NULL,
    token_count INTEGER NOT NULL,
    title       TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    sent_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS deliveries_vehicle_idx ON deliveries (vehicle, sent_at DESC);
CREATE INDEX IF NOT EXISTS deliveries_sent_at_idx ON deliveries (sent_at)
`

const queryInsertDelivery = `
INSERT INTO deliveries (id, event_id, kind, vehicle, token_count, title, error, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const queryListByVehicle = `
SELECT id, event_id, kind, vehicle, token_count, title, error, sent_at
FROM deliveries
WHERE vehicle = $1
ORDER BY sent_at DESC
LIMIT $2 OFFSET $3
`

const queryPurgeOlderThan = `
DELETE FROM deliveries
WHERE id IN (
    SELECT id FROM deliveries
    WHERE sent_at < $1
    ORDER BY sent_at ASC
    LIMIT $2
)
`
