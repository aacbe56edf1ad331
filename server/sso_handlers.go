package server

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/fixdesk/fixdesk/server/ssostate"
	"github.com/fixdesk/fixdesk/sessions"
)

// generateCodeChallenge creates a PKCE code challenge from a verifier.
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// SSOAuthorizeHandler starts the OIDC sign-in: it stashes the per-flow
// secrets and bounces the browser to the identity provider.
func (s *Server) SSOAuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oidcConfig, err := s.getOidcConfig(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("SSO provider discovery failed")
			respondError(w, http.StatusServiceUnavailable, "single sign-on unavailable")
			return
		}

		state := generateRandomString(24)
		nonce := generateRandomString(24)
		codeVerifier := generateRandomString(32)

		returnURL := r.URL.Query().Get("next")
		if !strings.HasPrefix(returnURL, "/") {
			returnURL = "/"
		}

		flow := &ssostate.FlowState{
			CodeVerifier: codeVerifier,
			Nonce:        nonce,
			ReturnURL:    returnURL,
			CreatedAt:    time.Now(),
		}
		if err := s.ssoState.Upsert(state, flow); err != nil {
			s.log.Error().Err(err).Msg("could not store SSO flow state")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		authURL := oidcConfig.OAuth2Config.AuthCodeURL(
			state,
			oidc.Nonce(nonce),
			oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(codeVerifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// SSOCallbackHandler completes the OIDC sign-in: code exchange, ID token
// verification, nonce check, then the resulting session is handed to the
// browser's session controller.
func (s *Server) SSOCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue covers both GET query params and form_post bodies.
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		if errorParam != "" {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("authorization failed: %s - %s", errorParam, errorDesc))
			return
		}
		if code == "" || state == "" {
			respondError(w, http.StatusBadRequest, "missing code or state parameter")
			return
		}

		flow, err := s.ssoState.Get(state)
		if err != nil || flow == nil {
			respondError(w, http.StatusBadRequest, "invalid state parameter")
			return
		}
		// State is single-use.
		if err := s.ssoState.Delete(state); err != nil {
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		oidcConfig, err := s.getOidcConfig(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("SSO provider discovery failed")
			respondError(w, http.StatusServiceUnavailable, "single sign-on unavailable")
			return
		}

		oauth2Token, err := oidcConfig.OAuth2Config.Exchange(
			r.Context(),
			code,
			oauth2.SetAuthURLParam("code_verifier", flow.CodeVerifier),
		)
		if err != nil {
			s.log.Warn().Err(err).Msg("SSO token exchange failed")
			respondError(w, http.StatusUnauthorized, "token exchange failed")
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			respondError(w, http.StatusInternalServerError, "no ID token in response")
			return
		}

		idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			s.log.Warn().Err(err).Msg("SSO ID token verification failed")
			respondError(w, http.StatusUnauthorized, "ID token verification failed")
			return
		}

		var claims struct {
			Nonce    string `json:"nonce"`
			Sub      string `json:"sub"`
			Email    string `json:"email"`
			Name     string `json:"name"`
			TenantID string `json:"tenant_id"`
		}
		if err := idToken.Claims(&claims); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to extract claims")
			return
		}
		if claims.Nonce != flow.Nonce {
			respondError(w, http.StatusUnauthorized, "invalid nonce")
			return
		}

		controller, err := s.registry.Ensure(w, r)
		if err != nil {
			s.log.Error().Err(err).Msg("could not create session controller")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		session := &sessions.Session{
			AccessToken:  oauth2Token.AccessToken,
			RefreshToken: oauth2Token.RefreshToken,
			UserID:       claims.Sub,
			Email:        claims.Email,
			ExpiresAt:    oauth2Token.Expiry,
			FetchedAt:    time.Now(),
		}
		if _, err := controller.AdoptSession(r.Context(), session); err != nil {
			respondForError(w, err)
			return
		}

		http.Redirect(w, r, flow.ReturnURL, http.StatusFound)
	}
}
