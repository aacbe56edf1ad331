package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fixdesk/fixdesk/internal/utils"
)

// Session is the application's cached copy of a session issued by the auth
// provider. The provider owns the tokens; FetchedAt records when this copy
// was last confirmed against it.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	FetchedAt    time.Time `json:"-"`
}

// IsExpired reports whether the provider-issued expiry has passed.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// FreshWithin reports whether this cached copy was confirmed against the
// provider within the given window. Used by the foreground recheck to skip
// revalidation of recently confirmed sessions.
func (s *Session) FreshWithin(window time.Duration, now time.Time) bool {
	return !s.FetchedAt.IsZero() && now.Sub(s.FetchedAt) < window
}

// Claims are the subset of access-token claims the session layer reads
// locally. They feed the degraded profile fallback when the profile row
// cannot be fetched.
type Claims struct {
	Subject     string   `json:"sub"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	TenantID    string   `json:"tenant_id"`
	Permissions []string `json:"permissions"`
}

// ParseClaims extracts claims from the access token without verifying the
// signature. Verification is the provider's job; locally the token is only a
// hint for degraded-state rendering, never an authorization decision.
func ParseClaims(accessToken string) (*Claims, error) {
	parser := jwt.NewParser()
	var mapClaims jwt.MapClaims
	if _, _, err := parser.ParseUnverified(accessToken, &mapClaims); err != nil {
		return nil, err
	}
	claims := &Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	}
	if tenantID, ok := mapClaims["tenant_id"].(string); ok {
		claims.TenantID = tenantID
	}
	if permissions, ok := mapClaims["permissions"].([]any); ok {
		claims.Permissions = utils.ToStringSlice(permissions)
	}
	return claims, nil
}
