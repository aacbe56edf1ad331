package sessions_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/fixdesk/fixdesk/sessions"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func TestParseClaims(t *testing.T) {
	accessToken := signToken(t, jwt.MapClaims{
		"sub":         "user-1",
		"email":       "maria.silva@example.com",
		"name":        "Maria Silva",
		"tenant_id":   "tenant-1",
		"permissions": []any{"orders.read", 42, "orders.write"},
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	claims, err := sessions.ParseClaims(accessToken)
	require.NoError(t, err)

	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "maria.silva@example.com", claims.Email)
	require.Equal(t, "Maria Silva", claims.Name)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.Equal(t, []string{"orders.read", "orders.write"}, claims.Permissions)
}

func TestParseClaimsToleratesMissingFields(t *testing.T) {
	accessToken := signToken(t, jwt.MapClaims{"sub": "user-1"})

	claims, err := sessions.ParseClaims(accessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Empty(t, claims.Email)
	require.Empty(t, claims.Permissions)
}

func TestParseClaimsRejectsGarbage(t *testing.T) {
	_, err := sessions.ParseClaims("not-a-jwt")
	require.Error(t, err)
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	fresh := &sessions.Session{ExpiresAt: now.Add(time.Minute)}
	require.False(t, fresh.IsExpired(now))

	stale := &sessions.Session{ExpiresAt: now.Add(-time.Minute)}
	require.True(t, stale.IsExpired(now))

	// No expiry claim means the provider decides; never locally expired.
	unbounded := &sessions.Session{}
	require.False(t, unbounded.IsExpired(now))
}

func TestFreshWithin(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	recent := &sessions.Session{FetchedAt: now.Add(-5 * time.Second)}
	require.True(t, recent.FreshWithin(10*time.Second, now))
	require.False(t, recent.FreshWithin(3*time.Second, now))

	never := &sessions.Session{}
	require.False(t, never.FreshWithin(time.Hour, now))
}
