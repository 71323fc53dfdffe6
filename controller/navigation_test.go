package controller_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tradevault/go-auth-client/authstate"
	"github.com/tradevault/go-auth-client/controller"
	"github.com/tradevault/go-auth-client/identity"
	"github.com/tradevault/go-auth-client/routeguard"
)

func authenticated() authstate.State {
	return authstate.NewState(&identity.Session{
		AccessToken: "access",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, &identity.User{ID: "u1"}, false)
}

func TestDecideNavigation(t *testing.T) {
	guard := routeguard.New()

	tests := []struct {
		name        string
		prev, next  authstate.State
		currentPath string
		wantTarget  string
		wantMove    bool
	}{
		{
			name:        "loading state never navigates",
			prev:        authstate.SignedOut(),
			next:        authstate.Loading(),
			currentPath: "/journal",
		},
		{
			name:        "unauthenticated on protected route goes to login with return target",
			prev:        authstate.Loading(),
			next:        authstate.SignedOut(),
			currentPath: "/journal/42",
			wantTarget:  "/auth/login?redirect=%2Fjournal%2F42",
			wantMove:    true,
		},
		{
			name:        "unauthenticated on public route stays",
			prev:        authstate.Loading(),
			next:        authstate.SignedOut(),
			currentPath: "/",
		},
		{
			name:        "sign-in on login page resolves return target",
			prev:        authstate.SignedOut(),
			next:        authenticated(),
			currentPath: "/auth/login?redirect=%2Ftrades%2F9",
			wantTarget:  "/trades/9",
			wantMove:    true,
		},
		{
			name:        "sign-in on landing page goes to dashboard",
			prev:        authstate.SignedOut(),
			next:        authenticated(),
			currentPath: "/",
			wantTarget:  routeguard.RouteDashboard,
			wantMove:    true,
		},
		{
			name:        "sign-in elsewhere stays put",
			prev:        authstate.SignedOut(),
			next:        authenticated(),
			currentPath: "/about",
		},
		{
			name:        "already authenticated stays put",
			prev:        authenticated(),
			next:        authenticated(),
			currentPath: "/auth/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, move := controller.DecideNavigation(guard, tt.prev, tt.next, tt.currentPath)
			require.Equal(t, tt.wantMove, move)
			require.Equal(t, tt.wantTarget, target)
		})
	}
}

func TestResolveReturnTarget(t *testing.T) {
	t.Run("extracts escaped path", func(t *testing.T) {
		require.Equal(t, "/journal/42",
			controller.ResolveReturnTarget("/auth/login?redirect=%2Fjournal%2F42"))
	})

	t.Run("defaults to dashboard", func(t *testing.T) {
		require.Equal(t, routeguard.RouteDashboard, controller.ResolveReturnTarget("/auth/login"))
		require.Equal(t, routeguard.RouteDashboard, controller.ResolveReturnTarget("/"))
	})

	t.Run("rejects open redirects", func(t *testing.T) {
		require.Equal(t, routeguard.RouteDashboard,
			controller.ResolveReturnTarget("/auth/login?redirect=https%3A%2F%2Fevil.example"))
		require.Equal(t, routeguard.RouteDashboard,
			controller.ResolveReturnTarget("/auth/login?redirect=%2F%2Fevil.example"))
	})
}

func TestLoginRedirect_RoundTrip(t *testing.T) {
	origin := "/journal/42"
	login := controller.LoginRedirect(origin)
	require.Equal(t, "/auth/login?redirect=%2Fjournal%2F42", login)
	require.Equal(t, origin, controller.ResolveReturnTarget(login))
}
