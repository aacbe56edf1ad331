package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fixdesk/fixdesk/backend"
	"github.com/fixdesk/fixdesk/bootstrap"
	"github.com/fixdesk/fixdesk/internal/cachestore"
	"github.com/fixdesk/fixdesk/internal/config"
	"github.com/fixdesk/fixdesk/profiles"
	"github.com/fixdesk/fixdesk/tenants"
)

// browserSessionCookie names the cookie that ties a browser to its session
// controller. The value is opaque; all session material lives server-side.
const browserSessionCookie = "fixdesk_session"

// Registry maintains one bootstrap controller per browser session. A
// controller survives across requests so its heartbeat, event coalescing and
// retry state carry over; after a server restart it is rebuilt lazily from
// the persisted token hints under the same key.
type Registry struct {
	auth  backend.AuthAPI
	data  *backend.DataClient
	hints cachestore.Store
	cfg   config.SessionConfig
	log   zerolog.Logger

	nowTime func() time.Time

	mu          sync.RWMutex
	controllers map[string]*bootstrap.Controller
	cancels     map[string]context.CancelFunc
	lastSeen    map[string]time.Time
	stopSweep   chan struct{}
	closeOnce   sync.Once
}

func NewRegistry(auth backend.AuthAPI, data *backend.DataClient, hints cachestore.Store, cfg config.SessionConfig, log zerolog.Logger) (*Registry, error) {
	if auth == nil {
		return nil, errors.New("[server.NewRegistry] auth backend not provided")
	}
	if data == nil {
		return nil, errors.New("[server.NewRegistry] data backend not provided")
	}
	reg := &Registry{
		auth:        auth,
		data:        data,
		hints:       hints,
		cfg:         cfg,
		log:         log,
		nowTime:     time.Now,
		controllers: make(map[string]*bootstrap.Controller),
		cancels:     make(map[string]context.CancelFunc),
		lastSeen:    make(map[string]time.Time),
		stopSweep:   make(chan struct{}),
	}
	if window := cfg.GetIdleEvictionWindow(); window > 0 {
		go reg.sweepLoop(window)
	}
	return reg, nil
}

// Lookup returns the controller for the request's browser session, if both
// the cookie and the controller exist.
func (reg *Registry) Lookup(r *http.Request) (*bootstrap.Controller, bool) {
	cookie, err := r.Cookie(browserSessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	controller, ok := reg.controllers[cookie.Value]
	if ok {
		reg.lastSeen[cookie.Value] = reg.nowTime()
	}
	return controller, ok
}

// Ensure returns the request's controller, creating the browser session and
// its cookie when missing. A cookie without a live controller, normal after
// a restart, gets a fresh controller under the same key so persisted tokens
// are picked up on Initialize.
func (reg *Registry) Ensure(w http.ResponseWriter, r *http.Request) (*bootstrap.Controller, error) {
	sessionID := ""
	if cookie, err := r.Cookie(browserSessionCookie); err == nil {
		sessionID = cookie.Value
	}
	if sessionID == "" {
		sessionID = generateRandomString(24)
		setBrowserSessionCookie(w, r, sessionID)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.lastSeen[sessionID] = reg.nowTime()
	if controller, ok := reg.controllers[sessionID]; ok {
		return controller, nil
	}

	controller, err := bootstrap.New(
		reg.auth,
		bootstrap.Repos{
			Profiles: profiles.NewBackendRepo(reg.data),
			Tenants:  tenants.NewBackendRepo(reg.data),
		},
		reg.hints,
		reg.cfg,
		sessionID,
		bootstrap.WithLogger(reg.log.With().Str("browser_session", sessionID).Logger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Registry.Ensure]")
	}

	ctx, cancel := context.WithCancel(context.Background())
	controller.Start(ctx)
	reg.controllers[sessionID] = controller
	reg.cancels[sessionID] = cancel
	return controller, nil
}

// CloseAll stops the idle sweeper and every controller's background loops.
func (reg *Registry) CloseAll() {
	reg.closeOnce.Do(func() { close(reg.stopSweep) })
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for sessionID := range reg.controllers {
		reg.evictLocked(sessionID)
	}
}

func (reg *Registry) sweepLoop(window time.Duration) {
	interval := window / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-reg.stopSweep:
			return
		case <-ticker.C:
			reg.SweepIdle()
		}
	}
}

// SweepIdle evicts controllers that have not served a request within the
// idle eviction window, bounding goroutine and memory growth from anonymous
// visitors. Signed-in sessions lose nothing: their tokens live in the hint
// store, so the next request rebuilds the controller under the same key.
func (reg *Registry) SweepIdle() {
	window := reg.cfg.GetIdleEvictionWindow()
	if window <= 0 {
		return
	}
	cutoff := reg.nowTime().Add(-window)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for sessionID, seen := range reg.lastSeen {
		if seen.Before(cutoff) {
			reg.log.Debug().Str("browser_session", sessionID).Msg("evicting idle session controller")
			reg.evictLocked(sessionID)
		}
	}
}

func (reg *Registry) evictLocked(sessionID string) {
	if controller, ok := reg.controllers[sessionID]; ok {
		controller.Close()
	}
	if cancel, ok := reg.cancels[sessionID]; ok {
		cancel()
	}
	delete(reg.controllers, sessionID)
	delete(reg.cancels, sessionID)
	delete(reg.lastSeen, sessionID)
}

// generateRandomString creates a random base64url string.
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func setBrowserSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     browserSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}
