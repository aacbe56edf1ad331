package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fixdesk/fixdesk/backend"
	"github.com/fixdesk/fixdesk/backend/backendfakes"
	"github.com/fixdesk/fixdesk/internal/cachestore"
	"github.com/fixdesk/fixdesk/internal/config"
	"github.com/fixdesk/fixdesk/profiles"
	"github.com/fixdesk/fixdesk/server"
	"github.com/fixdesk/fixdesk/shop"
	"github.com/fixdesk/fixdesk/tenants"
)

const (
	testEmail    = "joao.santos@example.com"
	testPassword = "password123"
	testTenantID = "tenant-1"
)

type testServerConfig struct {
	config.EnvVars
	config.Backend
	*config.Session
	config.SSO
}

func newTestServerConfig() testServerConfig {
	return testServerConfig{
		Session: &config.Session{
			BootstrapTimeout:        time.Second,
			AttemptTimeout:          time.Second,
			MaxFetchAttempts:        3,
			InitialRetryDelay:       time.Millisecond,
			BackoffFactor:           2.0,
			MaxRetryDelay:           5 * time.Millisecond,
			HeartbeatInterval:       time.Minute,
			ForegroundRecheckWindow: time.Minute,
			EventCoalesceWindow:     2 * time.Millisecond,
			RedirectSuppressWindow:  time.Minute,
			ProfileFreshness:        time.Minute,
			IdleEvictionWindow:      time.Minute,
		},
	}
}

type fakeProber struct{ online bool }

func (f *fakeProber) Online(_ context.Context) bool { return f.online }

// dataStub plays the hosted data API, answering per-table canned rows.
type dataStub struct {
	server *httptest.Server
	rows   map[string]any
}

func newDataStub(t *testing.T) *dataStub {
	t.Helper()
	stub := &dataStub{rows: make(map[string]any)}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("[]"))
			return
		}
		rows, ok := stub.rows[table]
		if !ok {
			rows = []any{}
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

type testFixture struct {
	auth   *backendfakes.FakeAuthClient
	data   *dataStub
	prober *fakeProber
	srv    *server.Server
	ts     *httptest.Server
	client *http.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	auth := backendfakes.NewFakeAuthClient()
	userID, err := auth.AddUser(testEmail, testPassword, "Joao Santos", testTenantID)
	require.NoError(t, err)

	data := newDataStub(t)
	data.rows["profiles"] = []profiles.Profile{{
		ID:          "prof-1",
		UserID:      userID,
		TenantID:    testTenantID,
		DisplayName: "Joao Santos",
		Email:       testEmail,
		Role:        profiles.RoleCashier,
	}}
	data.rows["tenants"] = []tenants.Tenant{{ID: testTenantID, Name: "Oficina Central", Plan: tenants.PlanPro}}
	data.rows["service_orders"] = []shop.ServiceOrder{{
		ID: "ord-1", TenantID: testTenantID, Number: 1, CustomerID: "cust-1",
		Device: "Notebook", Status: shop.StatusOpen, LaborCents: 5000,
	}}

	backendClient, err := backend.New(data.server.URL, "anon-key")
	require.NoError(t, err)

	prober := &fakeProber{online: true}
	srv, err := server.New(newTestServerConfig(), server.Backends{
		Auth:    auth,
		Data:    backendClient.Data(),
		Prober:  prober,
		Storage: backendClient.Storage(),
	}, cachestore.NewMemory())
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testFixture{auth: auth, data: data, prober: prober, srv: srv, ts: ts, client: client}
}

func (f *testFixture) postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	response, err := f.client.Post(f.ts.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return response
}

func (f *testFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	response, err := f.client.Get(f.ts.URL + path)
	require.NoError(t, err)
	return response
}

func (f *testFixture) signIn(t *testing.T) {
	t.Helper()
	response := f.postJSON(t, server.RouteSignIn, map[string]string{
		"email":    testEmail,
		"password": testPassword,
	})
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed
}

func decodeState(t *testing.T, response *http.Response) map[string]any {
	t.Helper()
	defer response.Body.Close()
	var state map[string]any
	require.NoError(t, json.NewDecoder(response.Body).Decode(&state))
	return state
}

func TestSignInEstablishesSession(t *testing.T) {
	f := setupTestFixture(t)

	response := f.postJSON(t, server.RouteSignIn, map[string]string{
		"email":    testEmail,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, response.StatusCode)

	state := decodeState(t, response)
	require.Equal(t, true, state["authenticated"])
	require.Equal(t, false, state["loading"])

	profile := state["profile"].(map[string]any)
	require.Equal(t, "Joao Santos", profile["display_name"])

	// The browser session cookie must be set and the raw tokens must not
	// appear anywhere in the payload.
	var sawCookie bool
	for _, cookie := range f.client.Jar.Cookies(mustParse(t, f.ts.URL)) {
		if cookie.Name == "fixdesk_session" {
			sawCookie = true
		}
	}
	require.True(t, sawCookie)
	_, hasSession := state["session"].(map[string]any)
	require.True(t, hasSession)
	raw, err := json.Marshal(state)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "access_token")
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	f := setupTestFixture(t)

	response := f.postJSON(t, server.RouteSignIn, map[string]string{
		"email":    testEmail,
		"password": "wrong",
	})
	defer response.Body.Close()
	require.Equal(t, http.StatusUnauthorized, response.StatusCode)
}

func TestSessionEndpointBootstrapsNewBrowser(t *testing.T) {
	f := setupTestFixture(t)

	state := decodeState(t, f.get(t, server.RouteSession))
	require.Equal(t, false, state["authenticated"])
	require.Equal(t, false, state["loading"])
}

func TestProtectedRouteRedirectsWithoutSession(t *testing.T) {
	f := setupTestFixture(t)

	response := f.get(t, server.RouteOrders)
	defer response.Body.Close()

	require.Equal(t, http.StatusFound, response.StatusCode)
	require.Contains(t, response.Header.Get("Location"), "/signin")
}

func TestProtectedRouteServesOrdersAfterSignIn(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)

	response := f.get(t, server.RouteOrders)
	require.Equal(t, http.StatusOK, response.StatusCode)

	payload := decodeState(t, response)
	orders := payload["orders"].([]any)
	require.Len(t, orders, 1)
	counts := payload["status_counts"].(map[string]any)
	require.EqualValues(t, 1, counts["open"])
}

func TestRoleGateBlocksCommissionsForCashier(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)

	response := f.get(t, server.RouteCommissions)
	defer response.Body.Close()

	require.Equal(t, http.StatusFound, response.StatusCode)
	require.Equal(t, "/denied", response.Header.Get("Location"))
}

func TestSignOutClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)

	response := f.postJSON(t, server.RouteSignOut, nil)
	response.Body.Close()
	require.Equal(t, http.StatusNoContent, response.StatusCode)

	state := decodeState(t, f.get(t, server.RouteSession))
	require.Equal(t, false, state["authenticated"])
}

func TestOfflineBackendSuspendsGateRedirect(t *testing.T) {
	f := setupTestFixture(t)
	f.prober.online = false

	// Establish the browser session first so the gate resolves a
	// controller with no signed-in user.
	f.get(t, server.RouteSession).Body.Close()

	response := f.get(t, server.RouteOrders)
	defer response.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, response.StatusCode)
	require.Empty(t, response.Header.Get("Location"))
}

func TestOrdersExportStreamsCSV(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)

	// Cashier lacks the manager role required for exports.
	denied := f.get(t, server.RouteOrdersExport)
	denied.Body.Close()
	require.Equal(t, http.StatusFound, denied.StatusCode)
}

func TestHealthReportsBackendStatus(t *testing.T) {
	f := setupTestFixture(t)

	payload := decodeState(t, f.get(t, server.RouteHealth))
	require.Equal(t, "ok", payload["status"])
	require.Equal(t, true, payload["backend_online"])

	f.prober.online = false
	payload = decodeState(t, f.get(t, server.RouteHealth))
	require.Equal(t, false, payload["backend_online"])
}

func TestPasswordResetAcceptsAnyAddress(t *testing.T) {
	f := setupTestFixture(t)

	known := f.postJSON(t, server.RouteResetPassword, map[string]string{"email": testEmail})
	known.Body.Close()
	require.Equal(t, http.StatusAccepted, known.StatusCode)

	unknown := f.postJSON(t, server.RouteResetPassword, map[string]string{"email": "nobody@example.com"})
	unknown.Body.Close()
	require.Equal(t, http.StatusAccepted, unknown.StatusCode)
}

func TestAvatarUploadReturnsPublicURL(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)

	request, err := http.NewRequest(http.MethodPost, f.ts.URL+server.RouteAvatar, bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	request.Header.Set("Content-Type", "image/png")

	response, err := f.client.Do(request)
	require.NoError(t, err)
	payload := decodeState(t, response)
	require.Equal(t, http.StatusOK, response.StatusCode)
	require.Contains(t, payload["url"], "/storage/v1/object/public/avatars/")
}

func TestFailedSignInDoesNotWedgeSession(t *testing.T) {
	f := setupTestFixture(t)

	denied := f.postJSON(t, server.RouteSignIn, map[string]string{
		"email":    testEmail,
		"password": "wrong-password",
	})
	denied.Body.Close()
	require.Equal(t, http.StatusUnauthorized, denied.StatusCode)

	// The browser session created for the rejected attempt must settle,
	// not report loading forever.
	state := decodeState(t, f.get(t, server.RouteSession))
	require.Equal(t, false, state["loading"])
	require.Equal(t, false, state["authenticated"])

	// Gated routes redirect to sign-in instead of answering 503.
	response := f.get(t, server.RouteOrders)
	defer response.Body.Close()
	require.Equal(t, http.StatusFound, response.StatusCode)
	require.Contains(t, response.Header.Get("Location"), "/signin")

	// A corrected retry on the same browser session succeeds.
	f.signIn(t)
	state = decodeState(t, f.get(t, server.RouteSession))
	require.Equal(t, true, state["authenticated"])
}

func TestRegistrySweepEvictsIdleControllers(t *testing.T) {
	auth := backendfakes.NewFakeAuthClient()
	_, err := auth.AddUser(testEmail, testPassword, "Joao Santos", testTenantID)
	require.NoError(t, err)

	data := newDataStub(t)
	backendClient, err := backend.New(data.server.URL, "anon-key")
	require.NoError(t, err)

	cfg := newTestServerConfig().Session
	cfg.IdleEvictionWindow = 5 * time.Millisecond

	registry, err := server.NewRegistry(auth, backendClient.Data(), cachestore.NewMemory(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(registry.CloseAll)

	recorder := httptest.NewRecorder()
	_, err = registry.Ensure(recorder, httptest.NewRequest(http.MethodGet, server.RouteSession, nil))
	require.NoError(t, err)
	cookies := recorder.Result().Cookies()
	require.NotEmpty(t, cookies)

	withCookie := httptest.NewRequest(http.MethodGet, server.RouteSession, nil)
	withCookie.AddCookie(cookies[0])
	_, ok := registry.Lookup(withCookie)
	require.True(t, ok)

	time.Sleep(10 * time.Millisecond)
	registry.SweepIdle()

	_, ok = registry.Lookup(withCookie)
	require.False(t, ok)

	// The same browser cookie gets a fresh controller on its next request,
	// resuming any persisted tokens under the same key.
	rebuilt, err := registry.Ensure(httptest.NewRecorder(), withCookie)
	require.NoError(t, err)
	require.NotNil(t, rebuilt)
}
