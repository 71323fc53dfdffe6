package identity

import "time"

// Session is the credential bundle issued by the identity backend after a
// successful sign-in, sign-up, or token refresh. The tokens are opaque to
// everything above the identity client.
type Session struct {
	AccessToken  string    `json:"access_token"`            // Bearer token presented on user-scoped calls
	RefreshToken string    `json:"refresh_token,omitempty"` // Exchanged for a fresh access token on expiry
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"` // When the access token stops being accepted
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires before now+margin.
// Used to refresh slightly early instead of racing the deadline.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !s.ExpiresAt.IsZero() && now.Add(margin).After(s.ExpiresAt)
}
