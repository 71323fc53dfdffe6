package config

import "time"

type AuthConfig interface {
	GetOAuthClientID() string
	GetOAuthRedirectURL() string
	GetBootstrapTimeout() time.Duration
	GetSessionRefreshMargin() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetOAuthClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "tradevault-web")
}

// GetOAuthRedirectURL is where the identity provider sends the user-agent
// back after an external OAuth sign-in.
func (Auth) GetOAuthRedirectURL() string {
	return GetEnv("OAUTH_REDIRECT_URL", "http://localhost:3000/auth/callback")
}

func (Auth) GetBootstrapTimeout() time.Duration {
	return 5 * time.Second
}

// GetSessionRefreshMargin is how close to expiry a persisted session may be
// before CurrentSession refreshes it instead of returning it as-is.
func (Auth) GetSessionRefreshMargin() time.Duration {
	return 30 * time.Second
}
