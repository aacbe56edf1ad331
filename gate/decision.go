package gate

import (
	"github.com/fixdesk/fixdesk/bootstrap"
	"github.com/fixdesk/fixdesk/profiles"
)

// Phase is the outcome of evaluating a protected view against the current
// session state.
type Phase int

const (
	// PhaseLoading means bootstrap has not settled yet; the caller should
	// show a loading response and retry shortly.
	PhaseLoading Phase = iota
	// PhaseAuthorized grants access.
	PhaseAuthorized
	// PhaseSignInRequired means there is no usable session.
	PhaseSignInRequired
	// PhaseAccessDenied means the session is valid but the profile does not
	// meet the view's role or permission requirement.
	PhaseAccessDenied
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseAuthorized:
		return "authorized"
	case PhaseSignInRequired:
		return "sign_in_required"
	case PhaseAccessDenied:
		return "access_denied"
	}
	return "unknown"
}

// Requirement describes what a protected view demands beyond a valid
// session. The zero value requires authentication only.
type Requirement struct {
	MinRole     profiles.RoleType
	Permissions []string
}

// Decide evaluates the session state against a requirement. It is pure: the
// middleware layers redirects, suppression and offline handling on top.
func Decide(state bootstrap.State, req Requirement) Phase {
	if state.Loading {
		return PhaseLoading
	}
	if !state.Authenticated() {
		return PhaseSignInRequired
	}
	if req.MinRole != "" && !state.Profile.Role.AtLeast(req.MinRole) {
		return PhaseAccessDenied
	}
	for _, permission := range req.Permissions {
		if !state.Profile.HasPermission(permission) {
			return PhaseAccessDenied
		}
	}
	return PhaseAuthorized
}
