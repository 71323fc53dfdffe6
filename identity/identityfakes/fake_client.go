// Package identityfakes provides an in-memory identity.Client for tests.
package identityfakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradevault/go-auth-client/identity"
)

var _ identity.Client = (*FakeClient)(nil)

// FakeClient simulates the identity backend: accounts are registered up
// front, sessions live in memory, and tests emit lifecycle events directly
// through Emit. CurrentSessionGate, when set, blocks CurrentSession until
// released so bootstrap races can be reproduced deterministically.
type FakeClient struct {
	accounts map[string]account // keyed by email
	session  *identity.Session
	user     *identity.User

	RequireEmailVerification bool
	OmitUserRecord           bool // token responses carry no user record
	SignOutErr               error
	CurrentSessionErr        error
	CurrentSessionGate       chan struct{}

	RecoverRequests []string

	subs     map[int]chan identity.Event
	nextSub  int
	sequence int64
	lock     sync.Mutex
}

type account struct {
	password string
	user     *identity.User
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		accounts: make(map[string]account),
		subs:     make(map[int]chan identity.Event),
	}
}

// RegisterAccount seeds a credentialed account.
func (f *FakeClient) RegisterAccount(email, password string) *identity.User {
	f.lock.Lock()
	defer f.lock.Unlock()

	user := &identity.User{
		ID:            email + "-id",
		Email:         email,
		EmailVerified: true,
	}
	f.accounts[email] = account{password: password, user: user}
	return user
}

// InstallSession makes a session appear as the persisted one, as if a prior
// run had signed in.
func (f *FakeClient) InstallSession(session *identity.Session, user *identity.User) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.session = session
	f.user = user
}

// Emit delivers an event to all subscribers, mirroring the backend push
// channel.
func (f *FakeClient) Emit(event identity.Event) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if event.Type == identity.EventSignedIn || event.Type == identity.EventTokenRefreshed {
		f.session = event.Session
		f.user = event.User
	} else {
		f.session = nil
		f.user = nil
	}

	// Send under the same lock the subscription's cancel takes, so a channel
	// can never be closed between the registry read and the send.
	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (f *FakeClient) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, *identity.User, error) {
	f.lock.Lock()
	acct, ok := f.accounts[email]
	f.lock.Unlock()

	if !ok || acct.password != password {
		return nil, nil, identity.ErrInvalidCredentials
	}

	session := f.newSession(email)
	user := acct.user
	f.lock.Lock()
	if f.OmitUserRecord {
		user = nil
	}
	f.session = session
	f.user = user
	f.lock.Unlock()

	f.Emit(identity.Event{Type: identity.EventSignedIn, Session: session, User: user})
	return session, user, nil
}

func (f *FakeClient) SignInWithOAuth(_ context.Context, provider string) (string, error) {
	if provider == "" {
		return "", identity.ErrInvalidRequest
	}
	return "https://backend.example/authorize?provider=" + provider, nil
}

func (f *FakeClient) CompleteOAuth(_ context.Context, code, state string) (*identity.Session, *identity.User, error) {
	if code == "" || state == "" {
		return nil, nil, identity.ErrInvalidOAuthState
	}
	session := f.newSession("oauth")
	user := &identity.User{ID: "oauth-user", Email: "oauth@example.com", EmailVerified: true}
	f.InstallSession(session, user)
	f.Emit(identity.Event{Type: identity.EventSignedIn, Session: session, User: user})
	return session, user, nil
}

func (f *FakeClient) SignInWithMagicLink(_ context.Context, email string) error {
	if err := identity.ValidateEmail(email); err != nil {
		return identity.ErrInvalidRequest
	}
	return nil
}

func (f *FakeClient) SignUp(_ context.Context, email, password string) (*identity.SignUpResult, error) {
	if err := identity.ValidatePasswordStrength(password); err != nil {
		return nil, identity.ErrWeakPassword
	}

	user := &identity.User{ID: email + "-id", Email: email}
	f.lock.Lock()
	f.accounts[email] = account{password: password, user: user}
	requireVerification := f.RequireEmailVerification
	f.lock.Unlock()

	if requireVerification {
		return &identity.SignUpResult{User: user, NeedsEmailVerification: true}, nil
	}

	session := f.newSession(email)
	f.InstallSession(session, user)
	f.Emit(identity.Event{Type: identity.EventSignedIn, Session: session, User: user})
	return &identity.SignUpResult{Session: session, User: user}, nil
}

func (f *FakeClient) RequestPasswordReset(_ context.Context, email string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	// Recorded but never differentiated: unknown emails get the same answer.
	f.RecoverRequests = append(f.RecoverRequests, email)
	return nil
}

func (f *FakeClient) UpdatePassword(_ context.Context, newPassword string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.session == nil {
		return identity.ErrUnauthenticated
	}
	if err := identity.ValidatePasswordStrength(newPassword); err != nil {
		return identity.ErrWeakPassword
	}
	return nil
}

func (f *FakeClient) SignOut(_ context.Context) error {
	f.lock.Lock()
	hadSession := f.session != nil
	f.session = nil
	f.user = nil
	err := f.SignOutErr
	f.lock.Unlock()

	if err != nil {
		return err
	}
	if hadSession {
		f.Emit(identity.Event{Type: identity.EventSignedOut})
	}
	return nil
}

func (f *FakeClient) CurrentSession(_ context.Context) (*identity.Session, error) {
	// Snapshot before waiting on the gate: a gated call models a slow
	// response that was read before whatever happened while it was in
	// flight, which is exactly the stale-bootstrap hazard.
	f.lock.Lock()
	gate := f.CurrentSessionGate
	err := f.CurrentSessionErr
	session := f.session
	f.lock.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (f *FakeClient) CurrentUser(_ context.Context) (*identity.User, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.session == nil {
		return nil, nil
	}
	return f.user, nil
}

func (f *FakeClient) RefreshSession(_ context.Context) (*identity.Session, *identity.User, error) {
	f.lock.Lock()
	if f.session == nil || f.session.RefreshToken == "" {
		f.lock.Unlock()
		return nil, nil, identity.ErrUnauthenticated
	}
	user := f.user
	f.lock.Unlock()

	session := f.newSession(user.Email)
	f.InstallSession(session, user)
	f.Emit(identity.Event{Type: identity.EventTokenRefreshed, Session: session, User: user})
	return session, user, nil
}

func (f *FakeClient) Subscribe() *identity.Subscription {
	// The fake mirrors the hub behaviour with its own channel registry so
	// tests can emit without a real backend.
	f.lock.Lock()
	id := f.nextSub
	f.nextSub++
	ch := make(chan identity.Event, 16)
	f.subs[id] = ch
	f.lock.Unlock()

	return identity.NewSubscriptionForTesting(ch, func() {
		f.lock.Lock()
		delete(f.subs, id)
		f.lock.Unlock()
	})
}

func (f *FakeClient) newSession(seed string) *identity.Session {
	f.lock.Lock()
	f.sequence++
	n := f.sequence
	f.lock.Unlock()

	return &identity.Session{
		AccessToken:  fmt.Sprintf("%s-access-%d", seed, n),
		RefreshToken: fmt.Sprintf("%s-refresh-%d", seed, n),
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}
