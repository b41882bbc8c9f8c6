package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/firewatch-etl/internal/domain"
)

// ChangeFeed reads pending rows from fire_changes in seq order. Rows
// stay pending until Commit stamps consumed_at, so a crashed consumer
// sees the same batch again on restart.
type ChangeFeed struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewChangeFeed wraps an existing store's pool. The feed shares the
// store's connections rather than opening its own.
func NewChangeFeed(store *Store, logger *slog.Logger) *ChangeFeed {
	return &ChangeFeed{pool: store.pool, logger: logger}
}

// NextBatch returns up to max unconsumed events, oldest first.
func (f *ChangeFeed) NextBatch(ctx context.Context, max int) ([]domain.ChangeEvent, error) {
	rows, err := f.pool.Query(ctx, `
		SELECT seq, kind, image
		FROM fire_changes
		WHERE consumed_at IS NULL
		ORDER BY seq
		LIMIT $1`, max)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var events []domain.ChangeEvent
	for rows.Next() {
		var (
			seq   int64
			kind  string
			image map[string]any
		)
		if err := rows.Scan(&seq, &kind, &image); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		events = append(events, domain.ChangeEvent{
			Seq:   seq,
			Kind:  domain.ChangeKind(kind),
			Image: image,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}
	return events, nil
}

// Commit marks the given events consumed.
func (f *ChangeFeed) Commit(ctx context.Context, events []domain.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	seqs := make([]int64, len(events))
	for i, ev := range events {
		seqs[i] = ev.Seq
	}
	if _, err := f.pool.Exec(ctx, `
		UPDATE fire_changes SET consumed_at = now() WHERE seq = ANY($1)`, seqs,
	); err != nil {
		return fmt.Errorf("commit changes: %w", err)
	}
	return nil
}
