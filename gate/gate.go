package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fixdesk/fixdesk/backend"
	"github.com/fixdesk/fixdesk/bootstrap"
	"github.com/fixdesk/fixdesk/internal/cachestore"
	"github.com/fixdesk/fixdesk/internal/config"
)

const (
	// DefaultSignInPath is where unauthenticated requests are redirected.
	DefaultSignInPath = "/signin"
	// DefaultDeniedPath is where authorised-but-insufficient requests land.
	DefaultDeniedPath = "/denied"
)

// Controller is the slice of the session controller the gate consumes.
type Controller interface {
	Snapshot() bootstrap.State
	NotifyForeground(ctx context.Context)
	RedirectHintKey() string
}

// Resolver maps an incoming request to its session controller. A nil return
// means the request carries no browser session at all.
type Resolver func(r *http.Request) Controller

// Gate guards protected views. It turns session state into one of four
// outcomes per request: pass through, loading response, sign-in redirect or
// access-denied redirect. Redirects are suppressed within a configured
// window so a burst of requests from a half-loaded page cannot bounce the
// browser repeatedly.
type Gate struct {
	resolve    Resolver
	prober     backend.Prober
	hints      cachestore.Store
	cfg        config.SessionConfig
	log        zerolog.Logger
	signInPath string
	deniedPath string
	nowTime    func() time.Time
}

type Option func(*Gate)

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) { g.log = logger }
}

func WithSignInPath(path string) Option {
	return func(g *Gate) { g.signInPath = path }
}

func WithDeniedPath(path string) Option {
	return func(g *Gate) { g.deniedPath = path }
}

func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Gate) { g.nowTime = nowFunc }
}

func New(resolve Resolver, prober backend.Prober, hints cachestore.Store, cfg config.SessionConfig, options ...Option) (*Gate, error) {
	if resolve == nil {
		return nil, errors.New("[gate.New] resolver not provided")
	}
	if hints == nil {
		return nil, errors.New("[gate.New] hint store not provided")
	}
	if cfg == nil {
		return nil, errors.New("[gate.New] config not provided")
	}
	g := &Gate{
		resolve:    resolve,
		prober:     prober,
		hints:      hints,
		cfg:        cfg,
		log:        zerolog.Nop(),
		signInPath: DefaultSignInPath,
		deniedPath: DefaultDeniedPath,
		nowTime:    time.Now,
	}
	for _, option := range options {
		option(g)
	}
	return g, nil
}

// Protect wraps a handler so it only runs for an authorised session meeting
// the requirement. The resolved state is placed on the request context for
// the handler via StateFromContext.
func (g *Gate) Protect(req Requirement) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctrl := g.resolve(r)
			if ctrl == nil {
				g.redirectToSignIn(w, r, nil)
				return
			}

			// Treat any protected request as app activity so a stale
			// session is rechecked. Bounded by the recheck window.
			ctrl.NotifyForeground(r.Context())

			state := ctrl.Snapshot()
			switch Decide(state, req) {
			case PhaseLoading:
				g.respondRetry(w, "loading")
			case PhaseSignInRequired:
				g.redirectToSignIn(w, r, ctrl)
			case PhaseAccessDenied:
				g.log.Info().Str("path", r.URL.Path).Str("role", string(state.Profile.Role)).Msg("access denied for protected view")
				http.Redirect(w, r, g.deniedPath, http.StatusFound)
			case PhaseAuthorized:
				next(w, r.WithContext(contextWithState(r.Context(), state)))
			}
		}
	}
}

// redirectToSignIn bounces the request to the sign-in page, at most once per
// suppression window per browser session. While the backend is unreachable
// the redirect is suspended entirely: connectivity loss must not look like a
// sign-out.
func (g *Gate) redirectToSignIn(w http.ResponseWriter, r *http.Request, ctrl Controller) {
	if g.prober != nil && !g.prober.Online(r.Context()) {
		g.respondRetry(w, "offline")
		return
	}

	if ctrl != nil {
		key := ctrl.RedirectHintKey()
		if _, found, err := g.hints.Get(r.Context(), key); err == nil && found {
			g.respondUnauthorized(w)
			return
		}
		if err := g.hints.Set(r.Context(), key, g.nowTime().UTC().Format(time.RFC3339), g.cfg.GetRedirectSuppressWindow()); err != nil {
			g.log.Warn().Err(err).Msg("could not record redirect suppression marker")
		}
	}

	target := g.signInPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// respondRetry answers 503 with a machine-readable reason so clients poll
// instead of treating the request as failed.
func (g *Gate) respondRetry(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (g *Gate) respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "sign_in_required"})
}

type contextKey struct{}

func contextWithState(ctx context.Context, state bootstrap.State) context.Context {
	return context.WithValue(ctx, contextKey{}, state)
}

// StateFromContext returns the session state the gate resolved for this
// request.
func StateFromContext(ctx context.Context) (bootstrap.State, bool) {
	state, ok := ctx.Value(contextKey{}).(bootstrap.State)
	return state, ok
}
