package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitepulse-io/sitepulse/internal/accumulator"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

// StatsAdapter implements storage.StatsStore for PostgreSQL. Every mutation
// is a single upsert statement (or one short transaction for the history
// push), so the row itself is the serialization point and concurrent
// ingestion against the same content id cannot lose increments.
type StatsAdapter struct {
	db *sql.DB
}

func NewStatsAdapter(db *sql.DB) *StatsAdapter {
	return &StatsAdapter{db: db}
}

// RecordView bumps the counters and the day history atomically. The day
// upsert and the 30-day eviction share one transaction, so the history
// bound holds for every concurrent reader.
func (a *StatsAdapter) RecordView(ctx context.Context, contentID string, day time.Time, unique bool) error {
	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stats tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryUpsertView, contentID, uniqueDelta); err != nil {
		return fmt.Errorf("upsert view counters: %w", err)
	}

	bucket := day.UTC().Truncate(24 * time.Hour)
	if _, err := tx.ExecContext(ctx, queryUpsertViewDay, contentID, bucket); err != nil {
		return fmt.Errorf("upsert view day: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryEvictViewDays, contentID); err != nil {
		return fmt.Errorf("evict old view days: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stats tx: %w", err)
	}
	return nil
}

// RecordEngagement folds one sample into the running means in a single
// statement; postgres evaluates the update against the old row, which is
// the incremental-mean formula.
func (a *StatsAdapter) RecordEngagement(ctx context.Context, contentID string, durationSeconds, scrollPercent float64) error {
	if _, err := a.db.ExecContext(ctx, queryUpsertEngagement, contentID, durationSeconds, scrollPercent); err != nil {
		return fmt.Errorf("upsert engagement means: %w", err)
	}
	return nil
}

func (a *StatsAdapter) Get(ctx context.Context, contentID string) (*accumulator.ContentStats, error) {
	stats := &accumulator.ContentStats{}
	err := a.db.QueryRowContext(ctx, queryGetContentStats, contentID).Scan(
		&stats.ContentID,
		&stats.TotalViews,
		&stats.UniqueViews,
		&stats.AvgDurationSeconds,
		&stats.AvgScrollPercent,
		&stats.EngagementSamples,
		&stats.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content stats: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, queryGetViewDays, contentID)
	if err != nil {
		return nil, fmt.Errorf("get view history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dv accumulator.DayViews
		if err := rows.Scan(&dv.Date, &dv.Views); err != nil {
			return nil, fmt.Errorf("scan view history row: %w", err)
		}
		stats.ViewHistory = append(stats.ViewHistory, dv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating view history: %w", err)
	}
	return stats, nil
}

func (a *StatsAdapter) Delete(ctx context.Context, contentID string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryDeleteContentHistory, contentID); err != nil {
		return fmt.Errorf("delete view history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryDeleteContentStats, contentID); err != nil {
		return fmt.Errorf("delete content stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}

	slog.Debug("[Postgres] Deleted content stats", "content_id", contentID)
	return nil
}
