package config

import "strings"

// SSOConfig carries the optional OIDC single-sign-on settings. When the
// issuer is empty, SSO routes are not registered.
type SSOConfig interface {
	GetSSOIssuerURL() string
	GetSSOClientID() string
	GetSSOClientSecret() string
	GetSSORedirectURL() string
	GetSSOScopes() []string
}

type SSO struct{}

var _ SSOConfig = SSO{}

func (SSO) GetSSOIssuerURL() string {
	return GetEnv("SSO_ISSUER_URL", "")
}

func (SSO) GetSSOClientID() string {
	return GetEnv("SSO_CLIENT_ID", "")
}

func (SSO) GetSSOClientSecret() string {
	return GetEnv("SSO_CLIENT_SECRET", "")
}

func (SSO) GetSSORedirectURL() string {
	return GetEnv("SSO_REDIRECT_URL", "http://localhost:8080/auth/sso/callback")
}

func (SSO) GetSSOScopes() []string {
	raw := GetEnv("SSO_SCOPES", "openid,profile,email")
	parts := strings.Split(raw, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			scopes = append(scopes, trimmed)
		}
	}
	return scopes
}
