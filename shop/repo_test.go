package shop_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixdesk/fixdesk/backend"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
	"github.com/fixdesk/fixdesk/shop"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   []byte
}

// stubBackend fakes the hosted data API: it records each request and plays
// back a scripted response.
type stubBackend struct {
	server   *httptest.Server
	requests []recordedRequest
	status   int
	response any
}

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	stub := &stubBackend{status: http.StatusOK, response: []any{}}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		stub.requests = append(stub.requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stub.status)
		_ = json.NewEncoder(w).Encode(stub.response)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *stubBackend) last() recordedRequest {
	return s.requests[len(s.requests)-1]
}

func newTestRepo(t *testing.T, stub *stubBackend) *shop.Repo {
	t.Helper()
	client, err := backend.New(stub.server.URL, "anon-key")
	require.NoError(t, err)
	repo, err := shop.NewRepo(client.Data(), "tenant-1")
	require.NoError(t, err)
	return repo
}

func TestNewRepoRequiresTenant(t *testing.T) {
	stub := newStubBackend(t)
	client, err := backend.New(stub.server.URL, "anon-key")
	require.NoError(t, err)

	_, err = shop.NewRepo(client.Data(), "")
	require.ErrorIs(t, err, apperrors.ErrTenantNotFound)
}

func TestListOrdersPinsTenantAndFilters(t *testing.T) {
	stub := newStubBackend(t)
	stub.response = []shop.ServiceOrder{{ID: "ord-1", TenantID: "tenant-1", Number: 1, Status: shop.StatusOpen}}
	repo := newTestRepo(t, stub)

	orders, err := repo.ListOrders(context.Background(), "token", shop.OrderFilter{
		Statuses: []shop.OrderStatus{shop.StatusOpen, shop.StatusInProgress},
		Limit:    20,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, 1, orders[0].Number)

	request := stub.last()
	require.Equal(t, http.MethodGet, request.method)
	require.Equal(t, "/rest/v1/service_orders", request.path)
	require.Contains(t, request.query, "tenant_id=eq.tenant-1")
	require.Contains(t, request.query, "status=in.%28open%2Cin_progress%29")
	require.Contains(t, request.query, "limit=20")
}

func TestListOrdersDateRange(t *testing.T) {
	stub := newStubBackend(t)
	repo := newTestRepo(t, stub)

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := repo.ListOrders(context.Background(), "token", shop.OrderFilter{Since: since})
	require.NoError(t, err)

	require.Contains(t, stub.last().query, "created_at=gte.2026-01-01T00%3A00%3A00Z")
}

func TestListOrdersBoundedRangeKeepsBothBounds(t *testing.T) {
	stub := newStubBackend(t)
	repo := newTestRepo(t, stub)

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	_, err := repo.ListOrders(context.Background(), "token", shop.OrderFilter{Since: since, Until: until})
	require.NoError(t, err)

	// Both bounds are repeated params on the same column; losing either
	// widens the range silently.
	query := stub.last().query
	require.Contains(t, query, "created_at=gte.2026-01-01T00%3A00%3A00Z")
	require.Contains(t, query, "created_at=lte.2026-01-31T23%3A59%3A59Z")
}

func TestGetOrderNotFound(t *testing.T) {
	stub := newStubBackend(t)
	stub.response = []shop.ServiceOrder{}
	repo := newTestRepo(t, stub)

	_, err := repo.GetOrder(context.Background(), "token", "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateOrderForcesTenantAndDefaultStatus(t *testing.T) {
	stub := newStubBackend(t)
	stub.status = http.StatusCreated
	repo := newTestRepo(t, stub)

	order := &shop.ServiceOrder{Number: 9, CustomerID: "cust-1", TenantID: "spoofed", Device: "PS5"}
	require.NoError(t, repo.CreateOrder(context.Background(), "token", order))

	require.Equal(t, "tenant-1", order.TenantID)
	require.Equal(t, shop.StatusOpen, order.Status)

	request := stub.last()
	require.Equal(t, http.MethodPost, request.method)
	require.Contains(t, string(request.body), `"tenant_id":"tenant-1"`)
}

func TestUpdateOrderStatusScopesByTenantAndID(t *testing.T) {
	stub := newStubBackend(t)
	repo := newTestRepo(t, stub)

	require.NoError(t, repo.UpdateOrderStatus(context.Background(), "token", "ord-1", shop.StatusCompleted))

	request := stub.last()
	require.Equal(t, http.MethodPatch, request.method)
	require.Contains(t, request.query, "tenant_id=eq.tenant-1")
	require.Contains(t, request.query, "id=eq.ord-1")
	require.Contains(t, string(request.body), `"status":"completed"`)
}

func TestBackendErrorsSurfaceClassified(t *testing.T) {
	stub := newStubBackend(t)
	stub.status = http.StatusServiceUnavailable
	repo := newTestRepo(t, stub)

	_, err := repo.ListCustomers(context.Background(), "token")
	require.Error(t, err)
	require.True(t, apperrors.IsTransient(err))
}
