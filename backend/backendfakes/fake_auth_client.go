package backendfakes

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fixdesk/fixdesk/backend"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/sessions"
)

const fakeSigningKey = "backendfakes-signing-key"

var _ backend.AuthAPI = (*FakeAuthClient)(nil)

type fakeUser struct {
	id           string
	email        string
	passwordHash string
	name         string
	tenantID     string
}

// FakeAuthClient is an in-memory stand-in for the provider's auth endpoints.
// Passwords are bcrypt-hashed and sessions carry real signed JWTs so claims
// parsing behaves as it does against the live provider. Failures can be
// scripted per call for retry and degraded-state tests.
type FakeAuthClient struct {
	lock      sync.Mutex
	users     map[string]*fakeUser // keyed by email
	sessions  map[string]*sessions.Session
	listeners map[int]func(backend.Event)
	nextID    int
	tokenTTL  time.Duration

	// Scripted failures: each call to the named method consumes one error.
	SignInErrs     []error
	GetSessionErrs []error
	SignOutErrs    []error
	RefreshErrs    []error
}

func NewFakeAuthClient() *FakeAuthClient {
	return &FakeAuthClient{
		users:     make(map[string]*fakeUser),
		sessions:  make(map[string]*sessions.Session),
		listeners: make(map[int]func(backend.Event)),
		tokenTTL:  time.Hour,
	}
}

// AddUser registers a user the fake will authenticate. Returns the user ID.
func (f *FakeAuthClient) AddUser(email, password, name, tenantID string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	id := uuid.New().String()
	f.users[email] = &fakeUser{
		id:           id,
		email:        email,
		passwordHash: string(hash),
		name:         name,
		tenantID:     tenantID,
	}
	return id, nil
}

func (f *FakeAuthClient) SignIn(_ context.Context, email, password string) (*sessions.Session, error) {
	if err := f.nextErr(&f.SignInErrs); err != nil {
		return nil, err
	}

	f.lock.Lock()
	user, ok := f.users[email]
	f.lock.Unlock()
	if !ok {
		return nil, apperrors.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.passwordHash), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	session, err := f.issueSession(user)
	if err != nil {
		return nil, err
	}
	f.Emit(backend.Event{Type: backend.EventSignedIn, Session: session, At: session.FetchedAt})
	return session, nil
}

func (f *FakeAuthClient) SignUp(_ context.Context, email, password string, metadata map[string]string) (*sessions.Session, error) {
	if _, err := f.AddUser(email, password, metadata["name"], metadata["tenant_id"]); err != nil {
		return nil, err
	}
	f.lock.Lock()
	user := f.users[email]
	f.lock.Unlock()
	return f.issueSession(user)
}

func (f *FakeAuthClient) SignOut(_ context.Context, accessToken string) error {
	if err := f.nextErr(&f.SignOutErrs); err != nil {
		return err
	}
	f.lock.Lock()
	delete(f.sessions, accessToken)
	f.lock.Unlock()
	f.Emit(backend.Event{Type: backend.EventSignedOut, At: time.Now()})
	return nil
}

func (f *FakeAuthClient) GetSession(_ context.Context, accessToken string) (*sessions.Session, error) {
	if err := f.nextErr(&f.GetSessionErrs); err != nil {
		return nil, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	session, ok := f.sessions[accessToken]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	copied := *session
	copied.FetchedAt = time.Now()
	return &copied, nil
}

func (f *FakeAuthClient) Refresh(_ context.Context, refreshToken string) (*sessions.Session, error) {
	if err := f.nextErr(&f.RefreshErrs); err != nil {
		return nil, err
	}
	f.lock.Lock()
	var user *fakeUser
	for _, s := range f.sessions {
		if s.RefreshToken == refreshToken {
			user = f.userByID(s.UserID)
			delete(f.sessions, s.AccessToken)
			break
		}
	}
	f.lock.Unlock()
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	session, err := f.issueSession(user)
	if err != nil {
		return nil, err
	}
	f.Emit(backend.Event{Type: backend.EventTokenRefreshed, Session: session, At: session.FetchedAt})
	return session, nil
}

func (f *FakeAuthClient) ResetPassword(context.Context, string) error {
	return nil
}

func (f *FakeAuthClient) Subscribe(listener func(backend.Event)) (cancel func()) {
	f.lock.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener
	f.lock.Unlock()
	return func() {
		f.lock.Lock()
		delete(f.listeners, id)
		f.lock.Unlock()
	}
}

// Emit pushes an event to all subscribers, as the provider would.
func (f *FakeAuthClient) Emit(event backend.Event) {
	f.lock.Lock()
	targets := make([]func(backend.Event), 0, len(f.listeners))
	for _, l := range f.listeners {
		targets = append(targets, l)
	}
	f.lock.Unlock()
	for _, l := range targets {
		l(event)
	}
}

// ExpireSession removes a session server-side without emitting an event,
// simulating invalidation detected only by the heartbeat.
func (f *FakeAuthClient) ExpireSession(accessToken string) {
	f.lock.Lock()
	delete(f.sessions, accessToken)
	f.lock.Unlock()
}

func (f *FakeAuthClient) issueSession(user *fakeUser) (*sessions.Session, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       user.id,
		"email":     user.email,
		"name":      user.name,
		"tenant_id": user.tenantID,
		"exp":       now.Add(f.tokenTTL).Unix(),
		"iat":       now.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(fakeSigningKey))
	if err != nil {
		return nil, err
	}

	session := &sessions.Session{
		AccessToken:  token,
		RefreshToken: uuid.New().String(),
		UserID:       user.id,
		Email:        user.email,
		ExpiresAt:    now.Add(f.tokenTTL),
		FetchedAt:    now,
	}
	f.lock.Lock()
	f.sessions[token] = session
	f.lock.Unlock()
	copied := *session
	return &copied, nil
}

func (f *FakeAuthClient) userByID(id string) *fakeUser {
	for _, u := range f.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (f *FakeAuthClient) nextErr(queue *[]error) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}
