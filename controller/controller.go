// Package controller orchestrates the session lifecycle: it bootstraps the
// persisted session, reacts to backend auth events, exposes the imperative
// sign-in/out operations, and performs the redirect and notification side
// effects that result from state transitions. It is the only writer of the
// auth state store.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tradevault/go-auth-client/authstate"
	"github.com/tradevault/go-auth-client/identity"
	"github.com/tradevault/go-auth-client/navigation"
	"github.com/tradevault/go-auth-client/notify"
	"github.com/tradevault/go-auth-client/routeguard"
	"github.com/tradevault/go-auth-client/storage"
)

const defaultBootstrapTimeout = 5 * time.Second

// Phase is the controller's position in its lifecycle.
type Phase string

const (
	PhaseUninitialized   Phase = "UNINITIALIZED"
	PhaseBootstrapping   Phase = "BOOTSTRAPPING"
	PhaseAuthenticated   Phase = "AUTHENTICATED"
	PhaseUnauthenticated Phase = "UNAUTHENTICATED"
)

// Deps holds all collaborator dependencies for the Controller.
type Deps struct {
	Identity identity.Client      // The identity backend
	State    *authstate.Store     // The single source of truth for auth state
	Guard    *routeguard.Policy   // Which routes need authentication
	Nav      navigation.Navigator // Current path and redirects
	Notifier notify.Notifier      // User-visible operation outcomes
	Storage  storage.Store        // Durable remember-me marker
}

// Controller is the session state machine. All transitions go through the
// mutex, so the store only ever sees complete, self-consistent states.
type Controller struct {
	deps             Deps
	logger           zerolog.Logger
	nowTime          func() time.Time
	bootstrapTimeout time.Duration

	mu           sync.Mutex
	phase        Phase
	eventApplied bool // once an event lands, a late bootstrap result is stale

	sub       *identity.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

// Option defines a function type to modify the Controller instance.
type Option func(*Controller)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// WithBootstrapTimeout bounds the initial session fetch; past it the
// controller fails open to unauthenticated instead of hanging in
// bootstrapping.
func WithBootstrapTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		c.bootstrapTimeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New initializes a new Controller with required dependencies. Optional
// configuration can be provided via options.
func New(deps Deps, options ...Option) (*Controller, error) {
	if deps.Identity == nil {
		return nil, errors.New("[controller.New] Identity client is required")
	}
	if deps.State == nil {
		return nil, errors.New("[controller.New] State store is required")
	}
	if deps.Guard == nil {
		return nil, errors.New("[controller.New] Route guard is required")
	}
	if deps.Nav == nil {
		return nil, errors.New("[controller.New] Navigator is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("[controller.New] Notifier is required")
	}
	if deps.Storage == nil {
		return nil, errors.New("[controller.New] Storage is required")
	}

	c := &Controller{
		deps:             deps,
		logger:           zerolog.Nop(),
		nowTime:          time.Now,
		bootstrapTimeout: defaultBootstrapTimeout,
		phase:            PhaseUninitialized,
		done:             make(chan struct{}),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Start subscribes to backend auth events, launches the event loop, and
// runs the bootstrap fetch. The subscription opens before the fetch so an
// early event can never be missed; if one lands first, the bootstrap result
// is discarded as stale.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseUninitialized {
		c.mu.Unlock()
		return errors.New("[Controller.Start] already started")
	}
	c.phase = PhaseBootstrapping
	c.deps.State.Set(authstate.Loading())
	c.sub = c.deps.Identity.Subscribe()
	c.mu.Unlock()

	go c.eventLoop()

	c.bootstrap(ctx)
	return nil
}

// Close releases the event subscription and stops the event loop. Safe to
// call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.sub != nil {
			c.sub.Unsubscribe()
		}
	})
}

// Phase returns the controller's current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// State is a convenience read of the store's current snapshot.
func (c *Controller) State() authstate.State {
	return c.deps.State.Snapshot()
}

// StateChanges registers a watcher on the state store. The returned cancel
// function releases it.
func (c *Controller) StateChanges() (<-chan authstate.State, func()) {
	return c.deps.State.Watch()
}

func (c *Controller) bootstrap(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.bootstrapTimeout)
	defer cancel()

	type fetched struct {
		session *identity.Session
		user    *identity.User
		err     error
	}
	result := make(chan fetched, 1)
	go func() {
		session, err := c.deps.Identity.CurrentSession(ctx)
		if err != nil || session == nil {
			result <- fetched{err: err}
			return
		}
		// A failed user fetch is not fatal: the state layer derives a
		// minimal user from the token claims.
		user, userErr := c.deps.Identity.CurrentUser(ctx)
		if userErr != nil {
			user = nil
		}
		result <- fetched{session: session, user: user}
	}()

	var outcome fetched
	select {
	case outcome = <-result:
	case <-ctx.Done():
		outcome = fetched{err: ctx.Err()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eventApplied {
		// An auth event settled the state while the fetch was in flight;
		// its session is fresher than whatever we just read.
		c.logger.Debug().Msg("bootstrap result discarded, auth event arrived first")
		return
	}

	if outcome.err != nil {
		// Fail open: a hung or unreachable backend must not pin the app on
		// a loading screen.
		c.logger.Warn().Err(outcome.err).Msg("session bootstrap failed, continuing unauthenticated")
		c.applyLocked(authstate.SignedOut())
		return
	}

	c.applyLocked(authstate.NewState(outcome.session, outcome.user, false))
}

func (c *Controller) eventLoop() {
	for {
		select {
		case event, ok := <-c.sub.Events():
			if !ok {
				return
			}
			c.handleEvent(event)
		case <-c.done:
			return
		}
	}
}

func (c *Controller) handleEvent(event identity.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug().Str("event", string(event.Type)).Msg("auth event received")

	switch event.Type {
	case identity.EventSignedIn, identity.EventTokenRefreshed:
		c.eventApplied = true
		c.applyLocked(authstate.NewState(event.Session, event.User, false))
	case identity.EventSignedOut, identity.EventUserDeleted:
		c.eventApplied = true
		c.applyLocked(authstate.SignedOut())
	default:
		// An unrecognized event applies no state, so it must not mark the
		// bootstrap result stale.
		c.logger.Warn().Str("event", string(event.Type)).Msg("unknown auth event ignored")
	}
}

// applyLocked installs a complete state, updates the phase, and performs
// any redirect the transition calls for. Callers hold c.mu.
func (c *Controller) applyLocked(next authstate.State) {
	prev := c.deps.State.Snapshot()
	c.deps.State.Set(next)

	switch {
	case next.IsLoading:
		c.phase = PhaseBootstrapping
	case next.IsAuthenticated:
		c.phase = PhaseAuthenticated
	default:
		c.phase = PhaseUnauthenticated
	}

	if target, ok := DecideNavigation(c.deps.Guard, prev, next, c.deps.Nav.CurrentPath()); ok {
		c.navigateTo(target)
	}
}

// navigateTo redirects unless the user is already there.
func (c *Controller) navigateTo(target string) {
	if c.deps.Nav.CurrentPath() == target {
		return
	}
	c.logger.Debug().Str("target", target).Msg("redirecting")
	c.deps.Nav.NavigateTo(target)
}
