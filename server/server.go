package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/fixdesk/fixdesk/backend"
	"github.com/fixdesk/fixdesk/gate"
	"github.com/fixdesk/fixdesk/internal/cachestore"
	"github.com/fixdesk/fixdesk/internal/config"
	"github.com/fixdesk/fixdesk/server/ssostate"
)

// Backends bundles the hosted-service clients the server talks to.
type Backends struct {
	Auth   backend.AuthAPI
	Data   *backend.DataClient
	Prober backend.Prober

	// Storage is optional; upload routes are registered only when set.
	Storage *backend.StorageClient
}

// OidcConfig holds the resolved SSO provider pieces.
type OidcConfig struct {
	OidcProvider *oidc.Provider
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	backends Backends
	hints    cachestore.Store
	log      zerolog.Logger

	registry *Registry
	gate     *gate.Gate
	ssoState ssostate.Repo

	oidcConfig *OidcConfig
	oidcLock   sync.Mutex
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.log = logger }
}

func New(cfg config.Config, backends Backends, hints cachestore.Store, options ...Option) (*Server, error) {
	if backends.Auth == nil {
		return nil, errors.New("[server.New] auth backend not provided")
	}
	if backends.Data == nil {
		return nil, errors.New("[server.New] data backend not provided")
	}
	if hints == nil {
		return nil, errors.New("[server.New] hint store not provided")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		backends: backends,
		hints:    hints,
		log:      zerolog.Nop(),
		ssoState: ssostate.NewInMemoryRepo(),
	}
	s.env = cfg.GetEnv()
	for _, option := range options {
		option(s)
	}

	registry, err := NewRegistry(backends.Auth, backends.Data, hints, cfg, s.log)
	if err != nil {
		return nil, fmt.Errorf("[server.New] failed to create session registry: %w", err)
	}
	s.registry = registry

	sessionGate, err := gate.New(s.resolveController, backends.Prober, hints, cfg, gate.WithLogger(s.log))
	if err != nil {
		return nil, fmt.Errorf("[server.New] failed to create gate: %w", err)
	}
	s.gate = sessionGate

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close shuts down every live session controller.
func (s *Server) Close() {
	s.registry.CloseAll()
}

// resolveController adapts the registry to the gate's resolver signature. A
// typed nil must not leak into the interface value.
func (s *Server) resolveController(r *http.Request) gate.Controller {
	controller, ok := s.registry.Lookup(r)
	if !ok {
		return nil
	}
	return controller
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// getOidcConfig resolves and caches the SSO provider configuration on first
// use. Discovery needs the network, so it is deferred past startup.
func (s *Server) getOidcConfig(ctx context.Context) (*OidcConfig, error) {
	s.oidcLock.Lock()
	defer s.oidcLock.Unlock()
	if s.oidcConfig != nil {
		return s.oidcConfig, nil
	}

	issuerURL := s.config.GetSSOIssuerURL()
	if issuerURL == "" {
		return nil, errors.New("[Server.getOidcConfig] SSO issuer not configured")
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("[Server.getOidcConfig] failed to create OIDC provider: %w", err)
	}

	scopes := s.config.GetSSOScopes()
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	s.oidcConfig = &OidcConfig{
		OidcProvider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:     s.config.GetSSOClientID(),
			ClientSecret: s.config.GetSSOClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  s.config.GetSSORedirectURL(),
			Scopes:       scopes,
		},
		OidcVerifier: provider.Verifier(&oidc.Config{
			ClientID: s.config.GetSSOClientID(),
		}),
	}
	return s.oidcConfig, nil
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
