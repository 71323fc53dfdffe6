package identity

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrBackendUnavailable = errors.New("identity backend unavailable")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidOAuthState  = errors.New("oauth state mismatch")
	ErrConfiguration      = errors.New("identity client misconfigured")
)
