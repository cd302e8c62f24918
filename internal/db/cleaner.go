package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// purges are run in order on every cleaner tick. Each removes credentials
// that can no longer be redeemed and have been dead for longer than the
// retention window.
var purges = []struct {
	table string
	query string
}{
	{"refresh_tokens", `DELETE FROM refresh_tokens WHERE (revoked = true OR expires_at < now()) AND created_at < $1`},
	{"password_resets", `DELETE FROM password_resets WHERE (used = true OR expires_at < now()) AND created_at < $1`},
}

// StartTokenCleaner deletes dead refresh tokens and password reset tokens with interval.
func StartTokenCleaner(
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
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				for _, p := range purges {
					res, err := db.ExecContext(ctx, p.query, cutoff)
					if err != nil {
						log.Error("failed to purge expired tokens", zap.String("table", p.table), zap.Error(err))
						continue
					}
					if rows, _ := res.RowsAffected(); rows > 0 {
						log.Info("purged expired tokens", zap.String("table", p.table), zap.Int64("removed", rows))
					}
				}
			}
		}
	}()
}
