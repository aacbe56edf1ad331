package bootstrap

import (
	"context"
	"time"

	"github.com/fixdesk/fixdesk/backend"
)

// Start subscribes to provider auth events and launches the liveness
// heartbeat. Both stop when ctx is cancelled; Close also unsubscribes.
func (c *Controller) Start(ctx context.Context) {
	c.unsubscribe = c.auth.Subscribe(c.onEvent)
	go c.heartbeatLoop(ctx)
}

// Close unsubscribes from provider events.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// onEvent coalesces bursts of provider events: within the coalescing window
// a later event replaces the pending one, and a single handler run processes
// whatever is pending when the window closes.
func (c *Controller) onEvent(event backend.Event) {
	c.pendingMu.Lock()
	c.pending = &event
	if c.coalesceTimer == nil {
		c.coalesceTimer = time.AfterFunc(c.cfg.GetEventCoalesceWindow(), c.flushEvent)
	}
	c.pendingMu.Unlock()
}

// flushEvent runs when the coalescing window closes. If a previous handler
// is still in flight the pending event is dropped and logged rather than
// queued: at most one handler runs at a time.
func (c *Controller) flushEvent() {
	c.pendingMu.Lock()
	event := c.pending
	c.pending = nil
	c.coalesceTimer = nil
	c.pendingMu.Unlock()

	if event == nil {
		return
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.log.Warn().Str("event", string(event.Type)).Msg("auth event dropped, handler already in flight")
		return
	}
	defer c.busy.Store(false)
	c.handleEvent(context.Background(), *event)
}

func (c *Controller) handleEvent(ctx context.Context, event backend.Event) {
	c.log.Debug().Str("event", string(event.Type)).Msg("handling auth event")
	gen := c.generation.Load()

	switch event.Type {
	case backend.EventSignedOut:
		// Sign-out wins over anything in flight.
		c.generation.Add(1)
		c.clearPersisted(ctx)
		c.store.publish(func(s *State) {
			s.Session = nil
			s.Profile = nil
			s.Tenant = nil
			s.Loading = false
		})

	case backend.EventSignedIn, backend.EventTokenRefreshed:
		if event.Session == nil {
			return
		}
		// A sign-in initiated through this controller already loaded the
		// profile synchronously; the echoed event is a no-op then.
		if snap := c.store.snapshot(); snap.Session != nil &&
			snap.Session.AccessToken == event.Session.AccessToken && snap.Profile != nil {
			return
		}
		c.persistTokens(ctx, event.Session)
		// flushEvent already holds the busy flag.
		c.loadProfile(ctx, event.Session, gen)

	case backend.EventUserUpdated:
		if snap := c.store.snapshot(); snap.Session != nil {
			c.loadProfile(ctx, snap.Session, gen)
		}
	}
}
