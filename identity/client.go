// Package identity wraps the hosted identity backend behind a minimal
// asynchronous operation set. It holds no authentication business rules;
// session policy lives in the controller.
package identity

import "context"

// SignUpResult is what the backend returns for a new registration. Session
// is nil when the backend requires email confirmation before the first
// login, in which case NeedsEmailVerification is set.
type SignUpResult struct {
	Session                *Session
	User                   *User
	NeedsEmailVerification bool
}

// Client is the primitive operation set against the identity backend.
// Every call returns backend failures as errors matching the sentinel
// taxonomy in errors.go; none of them panic past this boundary.
type Client interface {
	// SignInWithPassword exchanges credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, *User, error)

	// SignInWithOAuth prepares an external redirect sign-in and returns the
	// authorization URL to send the user-agent to. The sign-in itself
	// completes later, out of band, via CompleteOAuth.
	SignInWithOAuth(ctx context.Context, provider string) (string, error)

	// CompleteOAuth finishes a redirect sign-in with the code and state
	// returned by the provider.
	CompleteOAuth(ctx context.Context, code, state string) (*Session, *User, error)

	// SignInWithMagicLink asks the backend to email a one-time sign-in link.
	// No session is established synchronously.
	SignInWithMagicLink(ctx context.Context, email string) error

	// SignUp registers a new account.
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)

	// RequestPasswordReset asks the backend to email a reset link. The
	// observable result is identical whether or not the email is registered.
	RequestPasswordReset(ctx context.Context, email string) error

	// UpdatePassword changes the password of the currently signed-in user.
	// Fails with ErrUnauthenticated when there is no session.
	UpdatePassword(ctx context.Context, newPassword string) error

	// SignOut invalidates the current session server-side and locally.
	// Calling it with no session is a successful no-op.
	SignOut(ctx context.Context) error

	// CurrentSession returns the persisted session, refreshing it first if
	// it is at or past expiry. Returns (nil, nil) when none is installed.
	CurrentSession(ctx context.Context) (*Session, error)

	// CurrentUser returns the user behind the persisted session, or
	// (nil, nil) when there is no session.
	CurrentUser(ctx context.Context) (*User, error)

	// RefreshSession forces a token refresh using the persisted refresh
	// token.
	RefreshSession(ctx context.Context) (*Session, *User, error)

	// Subscribe opens a cancellable stream of session lifecycle events.
	Subscribe() *Subscription
}
