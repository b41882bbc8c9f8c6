// Package postgres persists fire records and exposes the change feed
// that drives alerting. Both live in the same database: a change row is
// written in the same transaction as the insert that caused it, so the
// feed never observes a change whose record did not commit.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS fires (
	fire_id           TEXT PRIMARY KEY,
	latitude          DOUBLE PRECISION NOT NULL,
	longitude         DOUBLE PRECISION NOT NULL,
	brightness        DOUBLE PRECISION NOT NULL,
	confidence        TEXT NOT NULL,
	frp               DOUBLE PRECISION NOT NULL,
	acq_date          TEXT NOT NULL,
	acq_time          TEXT NOT NULL,
	satellite         TEXT NOT NULL,
	instrument        TEXT NOT NULL,
	daynight          TEXT NOT NULL,
	location_city     TEXT NOT NULL,
	location_locality TEXT NOT NULL,
	location_state    TEXT NOT NULL,
	location_country  TEXT NOT NULL,
	ingest_timestamp  BIGINT NOT NULL,
	created_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fire_changes (
	seq         BIGSERIAL PRIMARY KEY,
	kind        TEXT NOT NULL,
	fire_id     TEXT NOT NULL,
	image       JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	consumed_at TIMESTAMPTZ
);
`

// Store is the pgx-backed FireStore. CreateIfAbsent relies on the
// fire_id primary key for its create-only guarantee, so concurrent
// processors racing on the same detection still yield exactly one row
// and one change event.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New opens a connection pool against databaseURL and ensures the
// schema exists.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// CreateIfAbsent inserts the record unless its fire_id already exists.
// On an actual insert the post-image change row is appended within the
// same transaction; a conflicting fire_id produces neither.
func (s *Store) CreateIfAbsent(ctx context.Context, rec domain.StoredFireRecord) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO fires (
			fire_id, latitude, longitude, brightness, confidence, frp,
			acq_date, acq_time, satellite, instrument, daynight,
			location_city, location_locality, location_state, location_country,
			ingest_timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (fire_id) DO NOTHING`,
		rec.FireID, rec.Latitude, rec.Longitude, rec.Brightness, rec.Confidence, rec.FRP,
		rec.AcqDate, rec.AcqTime, rec.Satellite, rec.Instrument, rec.DayNight,
		rec.LocationCity, rec.LocationLocality, rec.LocationState, rec.LocationCountry,
		rec.IngestTimestamp, rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert fire: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	image, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal change image: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO fire_changes (kind, fire_id, image) VALUES ($1, $2, $3)`,
		string(domain.ChangeInsert), rec.FireID, image,
	); err != nil {
		return false, fmt.Errorf("insert change: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable. The HTTP readiness
// probe calls it.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
