package gate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixdesk/fixdesk/bootstrap"
	"github.com/fixdesk/fixdesk/gate"
	"github.com/fixdesk/fixdesk/internal/cachestore"
	"github.com/fixdesk/fixdesk/internal/config"
	"github.com/fixdesk/fixdesk/profiles"
	"github.com/fixdesk/fixdesk/sessions"
)

type fakeController struct {
	state           bootstrap.State
	foregroundCalls int
}

func (f *fakeController) Snapshot() bootstrap.State          { return f.state }
func (f *fakeController) NotifyForeground(_ context.Context) { f.foregroundCalls++ }
func (f *fakeController) RedirectHintKey() string            { return "redirect:browser-1" }

type fakeProber struct{ online bool }

func (f *fakeProber) Online(_ context.Context) bool { return f.online }

type testFixture struct {
	controller *fakeController
	prober     *fakeProber
	hints      *cachestore.Memory
	gate       *gate.Gate
	handled    bool
	lastState  bootstrap.State
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		controller: &fakeController{},
		prober:     &fakeProber{online: true},
		hints:      cachestore.NewMemory(),
	}
	cfg := &config.Session{RedirectSuppressWindow: time.Minute}

	g, err := gate.New(
		func(*http.Request) gate.Controller { return f.controller },
		f.prober,
		f.hints,
		cfg,
	)
	require.NoError(t, err)
	f.gate = g
	return f
}

func (f *testFixture) request(t *testing.T, req gate.Requirement, target string) *httptest.ResponseRecorder {
	t.Helper()
	handler := f.gate.Protect(req)(func(w http.ResponseWriter, r *http.Request) {
		f.handled = true
		f.lastState, _ = gate.StateFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

func authenticatedState(role profiles.RoleType, permissions ...string) bootstrap.State {
	return bootstrap.State{
		Session: &sessions.Session{AccessToken: "token", UserID: "user-1"},
		Profile: &profiles.Profile{UserID: "user-1", Role: role, Permissions: permissions},
		Version: 3,
	}
}

func TestAuthorizedRequestReachesHandler(t *testing.T) {
	f := setupTestFixture(t)
	f.controller.state = authenticatedState(profiles.RoleCashier)

	recorder := f.request(t, gate.Requirement{}, "/app/orders")

	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, f.handled)
	require.True(t, f.lastState.Authenticated(), "handler must see the resolved state")
	require.Equal(t, 1, f.controller.foregroundCalls)
}

func TestLoadingStateAnswersRetryable(t *testing.T) {
	f := setupTestFixture(t)
	f.controller.state = bootstrap.State{Loading: true}

	recorder := f.request(t, gate.Requirement{}, "/app/orders")

	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Equal(t, "1", recorder.Header().Get("Retry-After"))
	require.Contains(t, recorder.Body.String(), "loading")
	require.False(t, f.handled)
}

func TestUnauthenticatedRedirectsToSignIn(t *testing.T) {
	f := setupTestFixture(t)

	recorder := f.request(t, gate.Requirement{}, "/app/orders?page=2")

	require.Equal(t, http.StatusFound, recorder.Code)
	require.Equal(t, "/signin?next=%2Fapp%2Forders%3Fpage%3D2", recorder.Header().Get("Location"))
}

func TestRedirectSuppressedWithinWindow(t *testing.T) {
	f := setupTestFixture(t)

	first := f.request(t, gate.Requirement{}, "/app/orders")
	second := f.request(t, gate.Requirement{}, "/app/customers")

	require.Equal(t, http.StatusFound, first.Code)
	require.Equal(t, http.StatusUnauthorized, second.Code, "second bounce inside the window must not redirect again")
	require.Contains(t, second.Body.String(), "sign_in_required")
}

func TestOfflineSuspendsRedirect(t *testing.T) {
	f := setupTestFixture(t)
	f.prober.online = false

	recorder := f.request(t, gate.Requirement{}, "/app/orders")

	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Contains(t, recorder.Body.String(), "offline")
	require.Empty(t, recorder.Header().Get("Location"))

	// No suppression marker either: once connectivity returns the user gets
	// a normal redirect.
	_, found, err := f.hints.Get(context.Background(), f.controller.RedirectHintKey())
	require.NoError(t, err)
	require.False(t, found)
}

func TestInsufficientRoleRedirectsToDenied(t *testing.T) {
	f := setupTestFixture(t)
	f.controller.state = authenticatedState(profiles.RoleCashier)

	recorder := f.request(t, gate.Requirement{MinRole: profiles.RoleManager}, "/app/reports")

	require.Equal(t, http.StatusFound, recorder.Code)
	require.Equal(t, "/denied", recorder.Header().Get("Location"))
	require.False(t, f.handled)
}

func TestMissingPermissionRedirectsToDenied(t *testing.T) {
	f := setupTestFixture(t)
	f.controller.state = authenticatedState(profiles.RoleManager, "orders.read")

	allowed := f.request(t, gate.Requirement{Permissions: []string{"orders.read"}}, "/app/orders")
	require.Equal(t, http.StatusOK, allowed.Code)

	denied := f.request(t, gate.Requirement{Permissions: []string{"orders.write"}}, "/app/orders")
	require.Equal(t, http.StatusFound, denied.Code)
	require.Equal(t, "/denied", denied.Header().Get("Location"))
}

func TestDegradedProfileKeepsLowestRoleAccess(t *testing.T) {
	f := setupTestFixture(t)
	state := authenticatedState(profiles.RoleAttendant)
	state.Profile.Degraded = true
	f.controller.state = state

	open := f.request(t, gate.Requirement{}, "/app/home")
	require.Equal(t, http.StatusOK, open.Code)

	restricted := f.request(t, gate.Requirement{MinRole: profiles.RoleFinance}, "/app/cash")
	require.Equal(t, http.StatusFound, restricted.Code)
	require.Equal(t, "/denied", restricted.Header().Get("Location"))
}

func TestUnknownBrowserSessionRedirects(t *testing.T) {
	f := setupTestFixture(t)
	g, err := gate.New(
		func(*http.Request) gate.Controller { return nil },
		f.prober,
		f.hints,
		&config.Session{RedirectSuppressWindow: time.Minute},
	)
	require.NoError(t, err)

	handler := g.Protect(gate.Requirement{})(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodGet, "/app/orders", nil))

	require.Equal(t, http.StatusFound, recorder.Code)
	require.Contains(t, recorder.Header().Get("Location"), "/signin")
}
