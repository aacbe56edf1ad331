// Package ssostate tracks in-flight SSO sign-ins between the authorize
// redirect and the provider callback.
package ssostate

import "time"

// FlowState is the per-flow secret material: the PKCE verifier, the nonce
// baked into the ID token, and where to land the user afterwards.
type FlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, flow *FlowState) error
	Get(state string) (*FlowState, error)
	Delete(state string) error
}
