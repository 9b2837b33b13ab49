package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PurgeDeletedItems permanently removes items soft-deleted before cutoff and
// returns how many rows went away.
func PurgeDeletedItems(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	// items.modified holds unix milliseconds.
	res, err := db.ExecContext(ctx,
		`DELETE FROM items WHERE deleted = true AND modified < $1`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge deleted items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge deleted items: %w", err)
	}
	return n, nil
}

// StartSoftDeleteCleaner runs PurgeDeletedItems every interval with a cutoff
// of retention before now, until ctx is done.
func StartSoftDeleteCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cutoff := now.Add(-retention)
				removed, err := PurgeDeletedItems(ctx, db, cutoff)
				if err != nil {
					log.Error("failed to purge deleted items", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("purged deleted items",
						zap.Int64("removed", removed),
						zap.Time("deleted_before", cutoff),
					)
				}
			}
		}
	}()
}
