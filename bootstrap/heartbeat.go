package bootstrap

import (
	"context"
	"time"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
)

// heartbeatLoop periodically verifies the session is still valid
// server-side. Ticks are skipped while loading is in progress or no session
// exists, so the heartbeat is effectively active only for signed-in users.
func (c *Controller) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.GetHeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.heartbeatTick(ctx)
		}
	}
}

func (c *Controller) heartbeatTick(ctx context.Context) {
	snap := c.store.snapshot()
	if snap.Loading || snap.Session == nil {
		return
	}
	c.validateSession(ctx, snap)
}

// NotifyForeground re-validates the session once when the application
// regains foreground visibility. Rechecks within the configured window are
// skipped; this is a cheap liveness check, not a profile reload.
func (c *Controller) NotifyForeground(ctx context.Context) {
	snap := c.store.snapshot()
	if snap.Loading || snap.Session == nil {
		return
	}

	c.validatedMu.Lock()
	recent := !c.lastValidated.IsZero() && c.nowTime().Sub(c.lastValidated) < c.cfg.GetForegroundRecheckWindow()
	c.validatedMu.Unlock()
	if recent {
		return
	}
	c.validateSession(ctx, snap)
}

// validateSession asks the provider whether the session is still good.
// Detected invalidation clears all state; transient failures leave the
// session untouched so flaky connectivity never logs a user out.
func (c *Controller) validateSession(ctx context.Context, snap State) {
	gen := c.generation.Load()
	confirmed, err := c.auth.GetSession(ctx, snap.Session.AccessToken)
	if err != nil {
		if apperrors.IsAuth(err) {
			c.log.Info().Msg("session invalidated server-side, clearing state")
			c.clearPersisted(ctx)
			c.publishIfCurrent(gen, func(s *State) {
				s.Session = nil
				s.Profile = nil
				s.Tenant = nil
				s.Loading = false
			})
			return
		}
		c.log.Warn().Err(err).Msg("liveness check unreachable, keeping session")
		return
	}

	c.validatedMu.Lock()
	c.lastValidated = c.nowTime()
	c.validatedMu.Unlock()

	c.publishIfCurrent(gen, func(s *State) {
		if s.Session == nil {
			return
		}
		updated := *s.Session
		updated.FetchedAt = confirmed.FetchedAt
		s.Session = &updated
	})
}
