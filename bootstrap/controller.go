// Package bootstrap acquires and maintains the (Session, Profile, Tenant)
// triple for the lifetime of a signed-in user, tolerating transient
// network failures. It is the only writer of that state; gates and views
// read snapshots or subscribe to change notifications.
package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fixdesk/fixdesk/backend"
	"github.com/fixdesk/fixdesk/internal/cachestore"
	"github.com/fixdesk/fixdesk/internal/config"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/profiles"
	"github.com/fixdesk/fixdesk/retry"
	"github.com/fixdesk/fixdesk/sessions"
	"github.com/fixdesk/fixdesk/tenants"
)

// Repos holds the repository dependencies of the Controller.
type Repos struct {
	Profiles profiles.Repo
	Tenants  tenants.Repo
}

// Controller owns the session bootstrap sequence: session retrieval with a
// bounded timeout, profile and tenant loading with retry and degraded
// fallback, provider event handling, the liveness heartbeat and sign-out.
type Controller struct {
	auth  backend.AuthAPI
	repos Repos
	hints cachestore.Store
	cfg   config.SessionConfig
	log   zerolog.Logger

	// hintKey namespaces this controller's persisted artifacts (cached
	// tokens, redirect markers) in the hint store.
	hintKey string

	store *store

	nowTime func() time.Time
	sleep   retry.SleepFunc

	// generation implements last-writer consistency: sign-out and forced
	// timeouts bump it, and any in-flight fetch publishes only if the
	// generation it started under is still current.
	generation atomic.Uint64

	// busy enforces the at-most-one-concurrent-handler policy for
	// provider events.
	busy atomic.Bool

	pendingMu     sync.Mutex
	pending       *backend.Event
	coalesceTimer *time.Timer

	validatedMu   sync.Mutex
	lastValidated time.Time

	fetchMu          sync.Mutex
	lastFetchAttempt int
	lastFetchErr     error

	unsubscribe func()
}

// Option modifies a Controller at construction time.
type Option func(*Controller)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Controller) { c.nowTime = nowFunc }
}

// WithSleep sets the retry sleep function (primarily for testing)
func WithSleep(sleep retry.SleepFunc) Option {
	return func(c *Controller) { c.sleep = sleep }
}

// WithLogger sets the controller's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.log = logger }
}

// New initializes a Controller with required dependencies. hintKey scopes
// the controller's persisted artifacts; each browser session gets its own.
func New(auth backend.AuthAPI, repos Repos, hints cachestore.Store, cfg config.SessionConfig, hintKey string, options ...Option) (*Controller, error) {
	if auth == nil {
		return nil, errors.New("[bootstrap.New] auth client is required")
	}
	if repos.Profiles == nil {
		return nil, errors.New("[bootstrap.New] Profiles repo is required")
	}
	if repos.Tenants == nil {
		return nil, errors.New("[bootstrap.New] Tenants repo is required")
	}
	if hints == nil {
		return nil, errors.New("[bootstrap.New] hint store is required")
	}
	if cfg == nil {
		return nil, errors.New("[bootstrap.New] session config is required")
	}

	c := &Controller{
		auth:    auth,
		repos:   repos,
		hints:   hints,
		cfg:     cfg,
		hintKey: hintKey,
		store:   newStore(),
		nowTime: time.Now,
		log:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Snapshot returns the current state as one atomic copy.
func (c *Controller) Snapshot() State {
	return c.store.snapshot()
}

// Subscribe registers for state change notifications. The channel carries at
// most the latest snapshot; cancel unregisters.
func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.store.subscribe()
}

// LastFetchStatus reports the most recent profile-fetch attempt number and
// error, for "retrying, attempt 2 of 3" style feedback.
func (c *Controller) LastFetchStatus() (attempt int, err error) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	return c.lastFetchAttempt, c.lastFetchErr
}

// Initialize requests the current session and, when one exists, loads the
// profile and tenant. It always completes within the configured bootstrap
// timeout: if the underlying calls stall, loading is forced complete and
// the in-flight result is discarded.
func (c *Controller) Initialize(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GetBootstrapTimeout())
	defer cancel()

	gen := c.generation.Load()
	done := make(chan State, 1)
	go func() {
		done <- c.initialize(ctx, gen)
	}()

	select {
	case state := <-done:
		return state
	case <-ctx.Done():
		// Invalidate the in-flight attempt so its late result cannot
		// overwrite the forced state.
		c.generation.Add(1)
		c.log.Warn().Dur("timeout", c.cfg.GetBootstrapTimeout()).Msg("bootstrap timed out, forcing loading complete")
		return c.store.publish(func(s *State) {
			s.Loading = false
		})
	}
}

func (c *Controller) initialize(ctx context.Context, gen uint64) State {
	accessToken, refreshToken, ok := c.loadPersistedTokens(ctx)
	if !ok {
		return c.publishIfCurrent(gen, func(s *State) {
			s.Loading = false
		})
	}

	session, err := c.auth.GetSession(ctx, accessToken)
	switch {
	case err == nil:
		session.RefreshToken = refreshToken
	case apperrors.IsAuth(err):
		c.clearPersisted(ctx)
		c.log.Info().Msg("cached session rejected by provider")
		return c.publishIfCurrent(gen, func(s *State) {
			s.Session = nil
			s.Loading = false
		})
	default:
		// Transient failure: trust the cached token rather than logging
		// the user out over flaky connectivity. The heartbeat will settle
		// it once the provider is reachable again.
		c.log.Warn().Err(err).Msg("session validation unreachable, using cached token")
		session = c.sessionFromToken(accessToken, refreshToken)
		if session == nil {
			return c.publishIfCurrent(gen, func(s *State) {
				s.Loading = false
			})
		}
	}

	c.persistTokens(ctx, session)
	c.loadProfileSerial(ctx, session, gen)
	return c.store.snapshot()
}

// SignIn authenticates with the provider and loads the profile and tenant
// for the new session.
func (c *Controller) SignIn(ctx context.Context, email, password string) (State, error) {
	gen := c.generation.Load()
	session, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		return c.settleLoading(gen), errors.Wrap(err, "[Controller.SignIn]")
	}
	c.persistTokens(ctx, session)
	c.loadProfileSerial(ctx, session, gen)
	return c.store.snapshot(), nil
}

// AdoptSession installs a session obtained outside the password flow, such
// as an SSO code exchange, then loads the profile and tenant for it.
func (c *Controller) AdoptSession(ctx context.Context, session *sessions.Session) (State, error) {
	if session == nil || session.AccessToken == "" {
		return c.settleLoading(c.generation.Load()), errors.Wrap(apperrors.ErrSessionNotFound, "[Controller.AdoptSession]")
	}
	gen := c.generation.Load()
	c.persistTokens(ctx, session)
	c.loadProfileSerial(ctx, session, gen)
	return c.store.snapshot(), nil
}

// Refresh force re-fetches the profile and tenant for the current session,
// used after profile edits elsewhere.
func (c *Controller) Refresh(ctx context.Context) error {
	snap := c.store.snapshot()
	if snap.Session == nil {
		return errors.Wrap(apperrors.ErrSessionNotFound, "[Controller.Refresh]")
	}
	c.loadProfileSerial(ctx, snap.Session, c.generation.Load())
	return nil
}

// SignOut invalidates the session with the provider, clears all cached
// state and persisted artifacts, and then notifies subscribers. Calling it
// twice has no additional effect.
func (c *Controller) SignOut(ctx context.Context) error {
	snap := c.store.snapshot()
	if snap.Session == nil && !snap.Loading {
		return nil
	}

	// Bump first: any in-flight fetch result is stale from here on.
	c.generation.Add(1)

	if snap.Session != nil {
		if err := c.auth.SignOut(ctx, snap.Session.AccessToken); err != nil {
			// Provider-side failure does not keep the user signed in
			// locally; the heartbeat of any other device will catch up.
			c.log.Warn().Err(err).Msg("provider sign-out failed, clearing local state anyway")
		}
	}
	c.clearPersisted(ctx)
	c.store.publish(func(s *State) {
		s.Session = nil
		s.Profile = nil
		s.Tenant = nil
		s.Loading = false
	})
	return nil
}

// loadProfileSerial runs loadProfile under the busy flag, enforcing the
// at-most-one-concurrent-fetch policy. A trigger that arrives while a fetch
// is in flight is skipped and logged, not queued.
func (c *Controller) loadProfileSerial(ctx context.Context, session *sessions.Session, gen uint64) bool {
	if !c.busy.CompareAndSwap(false, true) {
		c.log.Warn().Msg("profile fetch already in flight, skipping trigger")
		return false
	}
	defer c.busy.Store(false)
	c.loadProfile(ctx, session, gen)
	return true
}

// loadProfile fetches the profile and tenant for the session with bounded
// retries, falling back to a claims-derived degraded profile on exhaustion.
// The session itself is published immediately so views can show identity
// while the profile loads.
func (c *Controller) loadProfile(ctx context.Context, session *sessions.Session, gen uint64) {
	c.publishIfCurrent(gen, func(s *State) {
		s.Session = session
	})

	c.setFetchStatus(0, nil)
	retrier := retry.New(
		retry.Policy{
			MaxAttempts:   c.cfg.GetMaxFetchAttempts(),
			InitialDelay:  c.cfg.GetInitialRetryDelay(),
			BackoffFactor: c.cfg.GetBackoffFactor(),
			MaxDelay:      c.cfg.GetMaxRetryDelay(),
			Jitter:        0.2,
		},
		retry.WithSleep(c.sleepFunc()),
		retry.WithOnRetry(func(attempt int, err error) {
			c.setFetchStatus(attempt, err)
			c.log.Warn().Err(err).Int("attempt", attempt).Int("max", c.cfg.GetMaxFetchAttempts()).Msg("retrying profile fetch")
		}),
		retry.WithOnMaxAttemptsReached(func(attempt int, err error) {
			c.setFetchStatus(attempt, err)
			c.log.Warn().Err(err).Int("attempts", attempt).Msg("profile fetch exhausted, degrading to session claims")
		}),
	)

	var profile *profiles.Profile
	err := retrier.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.GetAttemptTimeout())
		defer cancel()

		fetched, fetchErr := c.repos.Profiles.GetByUserID(attemptCtx, session.AccessToken, session.UserID)
		if fetchErr != nil {
			if apperrors.IsAuth(fetchErr) {
				return retry.Permanent(fetchErr)
			}
			return fetchErr
		}
		profile = fetched
		return nil
	})

	if err != nil {
		if apperrors.IsAuth(err) {
			c.clearPersisted(ctx)
			c.publishIfCurrent(gen, func(s *State) {
				s.Session = nil
				s.Profile = nil
				s.Tenant = nil
				s.Loading = false
			})
			return
		}
		profile = c.fallbackProfile(session)
	}

	tenant := c.loadTenant(ctx, session, profile)

	c.publishIfCurrent(gen, func(s *State) {
		s.Profile = profile
		s.Tenant = tenant
		s.Loading = false
	})
}

// loadTenant fetches the profile's tenant. A missing tenant row is a data
// error: it is absorbed with a minimal record and a logged warning, never a
// reason to block sign-in.
func (c *Controller) loadTenant(ctx context.Context, session *sessions.Session, profile *profiles.Profile) *tenants.Tenant {
	if profile == nil || profile.TenantID == "" {
		return nil
	}
	tenant, err := c.repos.Tenants.Get(ctx, session.AccessToken, profile.TenantID)
	if err != nil {
		c.log.Warn().Err(err).Str("tenant_id", profile.TenantID).Msg("tenant fetch failed, using minimal record")
		return &tenants.Tenant{ID: profile.TenantID}
	}
	return tenant
}

// fallbackProfile builds a degraded profile from locally available session
// claims: email-derived name, lowest role, only token-carried permissions.
// It never invents identifiers that do not come from the token.
func (c *Controller) fallbackProfile(session *sessions.Session) *profiles.Profile {
	email := session.Email
	name := ""
	tenantID := ""
	var permissions []string
	if claims, err := sessions.ParseClaims(session.AccessToken); err == nil {
		if claims.Email != "" {
			email = claims.Email
		}
		name = claims.Name
		tenantID = claims.TenantID
		permissions = claims.Permissions
	}
	if name == "" && email != "" {
		name = profiles.DisplayNameFromEmail(email)
	}
	return &profiles.Profile{
		UserID:      session.UserID,
		TenantID:    tenantID,
		DisplayName: name,
		Email:       email,
		Role:        profiles.RoleAttendant,
		Permissions: permissions,
		Degraded:    true,
	}
}

// sessionFromToken rebuilds a session from a cached token's claims when the
// provider is unreachable. Returns nil for tokens that are unparsable or
// already expired.
func (c *Controller) sessionFromToken(accessToken, refreshToken string) *sessions.Session {
	claims, err := sessions.ParseClaims(accessToken)
	if err != nil {
		return nil
	}
	return &sessions.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       claims.Subject,
		Email:        claims.Email,
	}
}

// publishIfCurrent publishes only when gen is still the active generation,
// discarding stale writes from fetches that a sign-out or forced timeout
// overtook. The check runs under the store lock, so a bump-then-clear
// cannot interleave with a stale write.
func (c *Controller) publishIfCurrent(gen uint64, mutate func(*State)) State {
	state, ok := c.store.publishIf(func() bool {
		return c.generation.Load() == gen
	}, mutate)
	if !ok {
		c.log.Debug().Msg("discarding stale state update")
	}
	return state
}

// settleLoading marks loading complete on a controller whose first session
// attempt failed before Initialize ever ran, so gates and state readers see
// a settled unauthenticated state instead of loading forever.
func (c *Controller) settleLoading(gen uint64) State {
	if !c.store.snapshot().Loading {
		return c.store.snapshot()
	}
	return c.publishIfCurrent(gen, func(s *State) {
		s.Loading = false
	})
}

func (c *Controller) setFetchStatus(attempt int, err error) {
	c.fetchMu.Lock()
	c.lastFetchAttempt = attempt
	c.lastFetchErr = err
	c.fetchMu.Unlock()
}

func (c *Controller) sleepFunc() retry.SleepFunc {
	if c.sleep != nil {
		return c.sleep
	}
	return func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
