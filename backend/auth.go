package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/fixdesk/fixdesk/sessions"
	"github.com/pkg/errors"
)

// EventType identifies a provider-pushed auth state change.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is an auth state change pushed by the provider, with the session
// current at the time of the event (nil for SIGNED_OUT).
type Event struct {
	Type    EventType
	Session *sessions.Session
	At      time.Time
}

// AuthAPI is the surface of the provider's auth endpoints. The bootstrap
// controller depends on this interface; the HTTP client and the in-memory
// fake both implement it.
type AuthAPI interface {
	// SignIn authenticates with email and password.
	SignIn(ctx context.Context, email, password string) (*sessions.Session, error)

	// SignUp registers a new identity and returns its initial session.
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*sessions.Session, error)

	// SignOut invalidates the session server-side.
	SignOut(ctx context.Context, accessToken string) error

	// GetSession validates an access token and returns the provider's view
	// of the session. This is the liveness check used by the heartbeat.
	GetSession(ctx context.Context, accessToken string) (*sessions.Session, error)

	// Refresh exchanges a refresh token for a fresh session.
	Refresh(ctx context.Context, refreshToken string) (*sessions.Session, error)

	// ResetPassword starts the provider's password recovery flow.
	ResetPassword(ctx context.Context, email string) error

	// Subscribe registers a listener for provider-pushed auth events.
	// The returned cancel function stops delivery.
	Subscribe(listener func(Event)) (cancel func())
}

// AuthClient implements AuthAPI against the provider's HTTP auth endpoints.
type AuthClient struct {
	client    *Client
	listeners *listenerSet
}

var _ AuthAPI = (*AuthClient)(nil)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (tr *tokenResponse) session(now time.Time) *sessions.Session {
	return &sessions.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		ExpiresAt:    now.Add(time.Duration(tr.ExpiresIn) * time.Second),
		FetchedAt:    now,
	}
}

func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*sessions.Session, error) {
	var tr tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := a.client.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &tr); err != nil {
		return nil, errors.Wrap(err, "[AuthClient.SignIn]")
	}
	session := tr.session(time.Now())
	a.notify(Event{Type: EventSignedIn, Session: session, At: session.FetchedAt})
	return session, nil
}

func (a *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*sessions.Session, error) {
	var tr tokenResponse
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := a.client.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &tr); err != nil {
		return nil, errors.Wrap(err, "[AuthClient.SignUp]")
	}
	return tr.session(time.Now()), nil
}

func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	if err := a.client.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil); err != nil {
		return errors.Wrap(err, "[AuthClient.SignOut]")
	}
	a.notify(Event{Type: EventSignedOut, At: time.Now()})
	return nil
}

func (a *AuthClient) GetSession(ctx context.Context, accessToken string) (*sessions.Session, error) {
	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := a.client.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, errors.Wrap(err, "[AuthClient.GetSession]")
	}
	now := time.Now()
	return &sessions.Session{
		AccessToken: accessToken,
		UserID:      user.ID,
		Email:       user.Email,
		FetchedAt:   now,
	}, nil
}

func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*sessions.Session, error) {
	var tr tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := a.client.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &tr); err != nil {
		return nil, errors.Wrap(err, "[AuthClient.Refresh]")
	}
	session := tr.session(time.Now())
	a.notify(Event{Type: EventTokenRefreshed, Session: session, At: session.FetchedAt})
	return session, nil
}

func (a *AuthClient) ResetPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	if err := a.client.do(ctx, http.MethodPost, "/auth/v1/recover", "", body, nil); err != nil {
		return errors.Wrap(err, "[AuthClient.ResetPassword]")
	}
	return nil
}

func (a *AuthClient) Subscribe(listener func(Event)) (cancel func()) {
	return a.listeners.add(listener)
}

func (a *AuthClient) notify(event Event) {
	a.listeners.notify(event)
}
