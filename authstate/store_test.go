package authstate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tradevault/go-auth-client/authstate"
	"github.com/tradevault/go-auth-client/identity"
)

func testSession() *identity.Session {
	return &identity.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestNewState_Invariants(t *testing.T) {
	t.Run("nil session is unauthenticated with no user", func(t *testing.T) {
		state := authstate.NewState(nil, &identity.User{ID: "stray"}, false)
		require.False(t, state.IsAuthenticated)
		require.Nil(t, state.Session)
		require.Nil(t, state.User)
	})

	t.Run("session with user is authenticated", func(t *testing.T) {
		state := authstate.NewState(testSession(), &identity.User{ID: "u1"}, false)
		require.True(t, state.IsAuthenticated)
		require.NotNil(t, state.Session)
		require.NotNil(t, state.User)
	})

	t.Run("session without user still pairs a user", func(t *testing.T) {
		state := authstate.NewState(testSession(), nil, false)
		require.True(t, state.IsAuthenticated)
		require.NotNil(t, state.User)
	})

	t.Run("authenticated flag always mirrors session presence", func(t *testing.T) {
		for _, state := range []authstate.State{
			authstate.Loading(),
			authstate.SignedOut(),
			authstate.NewState(testSession(), nil, false),
			authstate.NewState(nil, nil, true),
		} {
			require.Equal(t, state.Session != nil, state.IsAuthenticated)
			require.Equal(t, state.Session != nil, state.User != nil)
		}
	})
}

func TestStore_SnapshotAndSet(t *testing.T) {
	store := authstate.NewStore()

	initial := store.Snapshot()
	require.True(t, initial.IsLoading)
	require.False(t, initial.IsAuthenticated)

	store.Set(authstate.NewState(testSession(), &identity.User{ID: "u1"}, false))
	require.True(t, store.Snapshot().IsAuthenticated)
}

func TestStore_WatchDeliversChanges(t *testing.T) {
	store := authstate.NewStore()
	watch, cancel := store.Watch()
	defer cancel()

	store.Set(authstate.SignedOut())

	select {
	case state := <-watch:
		require.False(t, state.IsAuthenticated)
		require.False(t, state.IsLoading)
	case <-time.After(time.Second):
		t.Fatal("expected state change")
	}
}

func TestStore_SlowWatcherSeesLatest(t *testing.T) {
	store := authstate.NewStore()
	watch, cancel := store.Watch()
	defer cancel()

	// Overflow the watcher buffer; the writer must not block and the last
	// write must still come through.
	for i := 0; i < 10; i++ {
		store.Set(authstate.SignedOut())
	}
	store.Set(authstate.NewState(testSession(), &identity.User{ID: "final"}, false))

	var last authstate.State
	for {
		select {
		case state := <-watch:
			last = state
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}
	require.True(t, last.IsAuthenticated)
	require.Equal(t, "final", last.User.ID)
}
