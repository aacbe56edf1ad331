package server

import (
	"net/http"
	"time"

	"github.com/fixdesk/fixdesk/bootstrap"
	"github.com/fixdesk/fixdesk/profiles"
	"github.com/fixdesk/fixdesk/tenants"
)

// stateResponse is the session state as exposed to the browser. Tokens stay
// server-side; the client only ever sees identity and authorisation facts.
type stateResponse struct {
	Authenticated bool              `json:"authenticated"`
	Loading       bool              `json:"loading"`
	Version       uint64            `json:"version"`
	Session       *sessionInfo      `json:"session,omitempty"`
	Profile       *profiles.Profile `json:"profile,omitempty"`
	Tenant        *tenants.Tenant   `json:"tenant,omitempty"`
	Degraded      bool              `json:"degraded,omitempty"`
}

type sessionInfo struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toStateResponse(state bootstrap.State) stateResponse {
	response := stateResponse{
		Authenticated: state.Authenticated(),
		Loading:       state.Loading,
		Version:       state.Version,
		Profile:       state.Profile,
		Tenant:        state.Tenant,
	}
	if state.Profile != nil {
		response.Degraded = state.Profile.Degraded
	}
	if state.Session != nil {
		response.Session = &sessionInfo{
			UserID:    state.Session.UserID,
			Email:     state.Session.Email,
			ExpiresAt: state.Session.ExpiresAt,
		}
	}
	return response
}

func (s *Server) SignInHandler() http.HandlerFunc {
	type signInRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var request signInRequest
		if !decodeJSON(w, r, &request) {
			return
		}
		if request.Email == "" || request.Password == "" {
			respondError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		controller, err := s.registry.Ensure(w, r)
		if err != nil {
			s.log.Error().Err(err).Msg("could not create session controller")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		state, err := controller.SignIn(r.Context(), request.Email, request.Password)
		if err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, toStateResponse(state))
	}
}

func (s *Server) SignUpHandler() http.HandlerFunc {
	type signUpRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		TenantID string `json:"tenant_id"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var request signUpRequest
		if !decodeJSON(w, r, &request) {
			return
		}
		if request.Email == "" || request.Password == "" {
			respondError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		metadata := map[string]string{"name": request.Name, "tenant_id": request.TenantID}
		if _, err := s.backends.Auth.SignUp(r.Context(), request.Email, request.Password, metadata); err != nil {
			respondForError(w, err)
			return
		}

		controller, err := s.registry.Ensure(w, r)
		if err != nil {
			s.log.Error().Err(err).Msg("could not create session controller")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		state, err := controller.SignIn(r.Context(), request.Email, request.Password)
		if err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, toStateResponse(state))
	}
}

// ResetPasswordHandler starts the provider's password recovery flow. The
// response is the same whether or not the address is known, so the endpoint
// cannot be used to enumerate accounts.
func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	type resetRequest struct {
		Email string `json:"email"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var request resetRequest
		if !decodeJSON(w, r, &request) {
			return
		}
		if request.Email == "" {
			respondError(w, http.StatusBadRequest, "email is required")
			return
		}

		if err := s.backends.Auth.ResetPassword(r.Context(), request.Email); err != nil {
			s.log.Warn().Err(err).Msg("password reset request failed")
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller, ok := s.registry.Lookup(r)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := controller.SignOut(r.Context()); err != nil {
			respondForError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller, ok := s.registry.Lookup(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "no session")
			return
		}
		if err := controller.Refresh(r.Context()); err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, toStateResponse(controller.Snapshot()))
	}
}

// SessionHandler reports the current session state, running Initialize for
// a new browser session so a page load settles in one round trip. Reads
// also count as app activity for the foreground recheck.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller, ok := s.registry.Lookup(r)
		if !ok {
			var err error
			controller, err = s.registry.Ensure(w, r)
			if err != nil {
				s.log.Error().Err(err).Msg("could not create session controller")
				respondError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			respondJSON(w, http.StatusOK, toStateResponse(controller.Initialize(r.Context())))
			return
		}

		if controller.Snapshot().Loading {
			// The controller exists but never settled, for example after a
			// rejected first sign-in attempt.
			respondJSON(w, http.StatusOK, toStateResponse(controller.Initialize(r.Context())))
			return
		}
		controller.NotifyForeground(r.Context())
		respondJSON(w, http.StatusOK, toStateResponse(controller.Snapshot()))
	}
}
