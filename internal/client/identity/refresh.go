package identity

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartAutoRefresh refreshes the credential in the background so it never
// expires while the client is idle. It stops when ctx is done.
func (c *Client) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.refreshIfExpiring(ctx, interval); err != nil {
					c.log.Warn("token refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// refreshIfExpiring refreshes the credential when it expires before the
// next tick.
func (c *Client) refreshIfExpiring(ctx context.Context, interval time.Duration) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil || !s.Expired(c.now(), interval+refreshSkew) {
		return nil
	}
	_, err := c.refresh(ctx, true)
	return err
}
