package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Stats summarizes the stored runs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var (
		stats      Stats
		suppressed sql.NullInt64
		latestRaw  sql.NullString
	)
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1), SUM(suppressed), MAX(created_at) FROM runs")
	if err := row.Scan(&stats.Runs, &suppressed, &latestRaw); err != nil {
		return Stats{}, fmt.Errorf("run stats: %w", err)
	}
	stats.Suppressed = int(suppressed.Int64)
	if latestRaw.Valid {
		if latest, err := parseTimeString(latestRaw.String); err == nil {
			stats.Latest = &latest
		}
	}
	return stats, nil
}

// PruneBefore deletes runs created before cutoff and returns them so callers
// can remove their artifacts.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) ([]*Run, error) {
	ctx = ensureContext(ctx)
	var expired []*Run
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		expired = expired[:0]
		rows, err := tx.QueryContext(ctx,
			"SELECT "+summaryColumns+" FROM runs WHERE created_at < ? ORDER BY created_at",
			formatTime(cutoff),
		)
		if err != nil {
			return fmt.Errorf("select expired runs: %w", err)
		}
		for rows.Next() {
			run, err := scanRun(rows, false)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan run: %w", err)
			}
			expired = append(expired, run)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate runs: %w", err)
		}
		rows.Close()

		if len(expired) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE created_at < ?", formatTime(cutoff)); err != nil {
			return fmt.Errorf("delete expired runs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
