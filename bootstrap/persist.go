package bootstrap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fixdesk/fixdesk/sessions"
)

// Persisted artifacts are short-lived hints, never a source of truth: a
// failed read just means the user signs in again.

const (
	tokenHintTTL = 24 * time.Hour

	tokenHintPrefix    = "token:"
	redirectHintPrefix = "redirect:"
)

type persistedTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (c *Controller) persistTokens(ctx context.Context, session *sessions.Session) {
	raw, err := json.Marshal(persistedTokens{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
	if err != nil {
		return
	}
	ttl := tokenHintTTL
	if !session.ExpiresAt.IsZero() {
		if until := session.ExpiresAt.Sub(c.nowTime()); until > 0 && until < ttl {
			ttl = until
		}
	}
	if err := c.hints.Set(ctx, tokenHintPrefix+c.hintKey, string(raw), ttl); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist token hint")
	}
}

func (c *Controller) loadPersistedTokens(ctx context.Context) (accessToken, refreshToken string, ok bool) {
	raw, found, err := c.hints.Get(ctx, tokenHintPrefix+c.hintKey)
	if err != nil || !found {
		return "", "", false
	}
	var tokens persistedTokens
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return "", "", false
	}
	return tokens.AccessToken, tokens.RefreshToken, tokens.AccessToken != ""
}

// clearPersisted proactively removes every hint this controller owns,
// including the gate's redirect marker.
func (c *Controller) clearPersisted(ctx context.Context) {
	for _, key := range []string{tokenHintPrefix + c.hintKey, redirectHintPrefix + c.hintKey} {
		if err := c.hints.Delete(ctx, key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("failed to clear hint")
		}
	}
}

// RedirectHintKey returns the hint-store key gates use to remember a recent
// redirect for this controller's scope.
func (c *Controller) RedirectHintKey() string {
	return redirectHintPrefix + c.hintKey
}
