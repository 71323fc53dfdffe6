package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/tradevault/go-auth-client/authstate"
	"github.com/tradevault/go-auth-client/identity"
	"github.com/tradevault/go-auth-client/notify"
	"github.com/tradevault/go-auth-client/routeguard"
	"github.com/tradevault/go-auth-client/storage"
)

// SignUpResult mirrors the backend's registration outcome for callers.
type SignUpResult struct {
	NeedsEmailVerification bool
}

// rememberMarker is what the remember-me storage key holds.
type rememberMarker struct {
	RememberMe bool      `json:"remember_me"`
	SavedAt    time.Time `json:"saved_at"`
}

// SignIn performs a credential sign-in. On success the state becomes
// authenticated and the user is moved to their return target (the login
// page's redirect parameter, defaulting to the dashboard). On failure the
// state is left exactly as it was and the error is returned for the form to
// display; no redirect happens.
func (c *Controller) SignIn(ctx context.Context, email, password string, rememberMe bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.deps.State.Snapshot()
	loginPath := c.deps.Nav.CurrentPath()
	c.applyLocked(authstate.NewState(prev.Session, prev.User, true))

	session, user, err := c.deps.Identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		c.applyLocked(prev)
		c.notifyOperationFailure("Sign in failed", err)
		return err
	}

	c.eventApplied = true
	if rememberMe {
		c.saveRememberMarker()
	} else {
		_ = c.deps.Storage.Delete(storage.KeyRememberMe)
	}

	c.applyLocked(authstate.NewState(session, user, false))
	c.navigateTo(ResolveReturnTarget(loginPath))
	// The token response may omit the user record, so the notice names the
	// address the sign-in was made with.
	c.deps.Notifier.Notify(notify.Notice{
		Title:       "Welcome back",
		Description: "Signed in as " + email,
		Severity:    notify.SeveritySuccess,
	})
	return nil
}

// SignUp registers a new account. When the backend hands back an immediate
// session this behaves like SignIn; when it requires email verification the
// state stays unauthenticated, no navigation happens, and the caller gets
// NeedsEmailVerification to render the check-your-inbox view.
func (c *Controller) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.deps.State.Snapshot()
	signupPath := c.deps.Nav.CurrentPath()
	c.applyLocked(authstate.NewState(prev.Session, prev.User, true))

	result, err := c.deps.Identity.SignUp(ctx, email, password)
	if err != nil {
		c.applyLocked(prev)
		c.notifyOperationFailure("Sign up failed", err)
		return SignUpResult{}, err
	}

	if result.NeedsEmailVerification {
		c.applyLocked(prev)
		c.deps.Notifier.Notify(notify.Notice{
			Title:       "Confirm your email",
			Description: "We sent a verification link to " + email,
			Severity:    notify.SeverityInfo,
		})
		return SignUpResult{NeedsEmailVerification: true}, nil
	}

	c.eventApplied = true
	c.applyLocked(authstate.NewState(result.Session, result.User, false))
	c.navigateTo(ResolveReturnTarget(signupPath))
	c.deps.Notifier.Notify(notify.Notice{
		Title:       "Account created",
		Description: "Signed in as " + email,
		Severity:    notify.SeveritySuccess,
	})
	return SignUpResult{}, nil
}

// SignOut clears the session. The backend call may fail, but local sign-out
// must not be blocked by a network failure: the error is logged and the
// local state, remember-me marker, and navigation are cleaned up regardless.
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.deps.Identity.SignOut(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("backend sign-out failed, clearing local session anyway")
	}

	c.eventApplied = true
	_ = c.deps.Storage.Delete(storage.KeyRememberMe)
	// Move off the page first so the cleared state does not trigger a
	// second, redirect-parameterised hop to the login page.
	c.navigateTo(routeguard.RouteLogin)
	c.applyLocked(authstate.SignedOut())
	c.deps.Notifier.Notify(notify.Notice{
		Title:       "Signed out",
		Description: "You have been signed out",
		Severity:    notify.SeverityInfo,
	})
	return nil
}

// ResetPasswordRequest asks the backend to send a password reset email. The
// outcome the user sees is the same whether or not the address is
// registered.
func (c *Controller) ResetPasswordRequest(ctx context.Context, email string) error {
	if err := c.deps.Identity.RequestPasswordReset(ctx, email); err != nil {
		c.notifyOperationFailure("Password reset failed", err)
		return err
	}
	c.deps.Notifier.Notify(notify.Notice{
		Title:       "Check your email",
		Description: "If an account exists for " + email + ", a reset link is on its way",
		Severity:    notify.SeverityInfo,
	})
	return nil
}

// ChangePassword updates the signed-in user's password. Fails with
// ErrUnauthenticated when there is no session; never changes the
// authenticated/unauthenticated state.
func (c *Controller) ChangePassword(ctx context.Context, newPassword string) error {
	if !c.deps.State.Snapshot().IsAuthenticated {
		return errors.Wrap(identity.ErrUnauthenticated, "[Controller.ChangePassword] no active session")
	}

	if err := c.deps.Identity.UpdatePassword(ctx, newPassword); err != nil {
		c.notifyOperationFailure("Password change failed", err)
		return err
	}
	c.deps.Notifier.Notify(notify.Notice{
		Title:       "Password updated",
		Description: "Your password has been changed",
		Severity:    notify.SeveritySuccess,
	})
	return nil
}

// SignInWithProvider starts an external OAuth redirect sign-in and returns
// the URL to send the user-agent to. The session arrives later as a
// SIGNED_IN event once the redirect completes.
func (c *Controller) SignInWithProvider(ctx context.Context, provider string) (string, error) {
	authURL, err := c.deps.Identity.SignInWithOAuth(ctx, provider)
	if err != nil {
		c.notifyOperationFailure("Sign in failed", err)
		return "", err
	}
	return authURL, nil
}

// CompleteProviderSignIn finishes an OAuth redirect with the code and state
// the provider sent back.
func (c *Controller) CompleteProviderSignIn(ctx context.Context, code, state string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.deps.State.Snapshot()
	callbackPath := c.deps.Nav.CurrentPath()
	c.applyLocked(authstate.NewState(prev.Session, prev.User, true))

	session, user, err := c.deps.Identity.CompleteOAuth(ctx, code, state)
	if err != nil {
		c.applyLocked(prev)
		c.notifyOperationFailure("Sign in failed", err)
		return err
	}

	c.eventApplied = true
	c.applyLocked(authstate.NewState(session, user, false))
	c.navigateTo(ResolveReturnTarget(callbackPath))
	return nil
}

// SignInWithMagic asks the backend to email a one-time sign-in link. No
// session is established here; it arrives as an event after the link is
// followed.
func (c *Controller) SignInWithMagic(ctx context.Context, email string) error {
	if err := c.deps.Identity.SignInWithMagicLink(ctx, email); err != nil {
		c.notifyOperationFailure("Magic link failed", err)
		return err
	}
	c.deps.Notifier.Notify(notify.Notice{
		Title:       "Check your email",
		Description: "A sign-in link was sent to " + email,
		Severity:    notify.SeverityInfo,
	})
	return nil
}

// RefreshSession forces a token refresh and installs the new session.
func (c *Controller) RefreshSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, user, err := c.deps.Identity.RefreshSession(ctx)
	if err != nil {
		return err
	}
	c.eventApplied = true
	c.applyLocked(authstate.NewState(session, user, false))
	return nil
}

// RememberMe reports whether a durable remember-me marker is present.
func (c *Controller) RememberMe() bool {
	raw, err := c.deps.Storage.Get(storage.KeyRememberMe)
	if err != nil {
		return false
	}
	var marker rememberMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		return false
	}
	return marker.RememberMe
}

func (c *Controller) saveRememberMarker() {
	raw, err := json.Marshal(rememberMarker{RememberMe: true, SavedAt: c.nowTime()})
	if err != nil {
		return
	}
	if err := c.deps.Storage.Set(storage.KeyRememberMe, raw); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist remember-me marker")
	}
}

// notifyOperationFailure raises a toast for operation-level failures.
// Credential mistakes stay inline on the form, so they get no toast.
func (c *Controller) notifyOperationFailure(title string, err error) {
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return
	}
	c.deps.Notifier.Notify(notify.Notice{
		Title:       title,
		Description: err.Error(),
		Severity:    notify.SeverityError,
	})
}
