// Package authstate holds the client-side authentication state aggregate.
// The store is a dumb observable container: the session controller is its
// only writer, everything else reads snapshots or watches for changes.
package authstate

import "github.com/tradevault/go-auth-client/identity"

// State is the aggregate the rest of the application consumes.
// IsAuthenticated always equals Session != nil, and User is non-nil exactly
// when Session is; NewState is the only way to build one so the invariants
// cannot drift.
type State struct {
	User            *identity.User
	Session         *identity.Session
	IsLoading       bool
	IsAuthenticated bool
}

// NewState derives a self-consistent State from a session and user. A nil
// session drops the user too: a user is never held without the session it
// came from.
func NewState(session *identity.Session, user *identity.User, isLoading bool) State {
	if session == nil {
		return State{IsLoading: isLoading}
	}
	if user == nil {
		// Session without a user record: derive the minimal one from token
		// claims rather than violate the pairing invariant.
		if claims, err := identity.ParseAccessTokenClaims(session.AccessToken); err == nil {
			user = &identity.User{ID: claims.Sub, Email: claims.Email, EmailVerified: claims.EmailVerified}
		} else {
			user = &identity.User{}
		}
	}
	return State{
		User:            user,
		Session:         session,
		IsLoading:       isLoading,
		IsAuthenticated: true,
	}
}

// Loading is the bootstrap state: no session, loading flag up.
func Loading() State {
	return State{IsLoading: true}
}

// SignedOut is the settled unauthenticated state.
func SignedOut() State {
	return State{}
}
