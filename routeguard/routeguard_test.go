package routeguard_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tradevault/go-auth-client/routeguard"
)

func TestPolicy_RequiresAuth(t *testing.T) {
	policy := routeguard.New()

	t.Run("exact protected prefix", func(t *testing.T) {
		require.True(t, policy.RequiresAuth("/journal"))
	})

	t.Run("descendant of protected prefix", func(t *testing.T) {
		require.True(t, policy.RequiresAuth("/journal/123"))
		require.True(t, policy.RequiresAuth("/trades/2024/08/31"))
	})

	t.Run("shared token prefix does not match", func(t *testing.T) {
		require.False(t, policy.RequiresAuth("/journal-archive"))
		require.False(t, policy.RequiresAuth("/tradesman"))
	})

	t.Run("public routes", func(t *testing.T) {
		require.False(t, policy.RequiresAuth("/"))
		require.False(t, policy.RequiresAuth("/auth/login"))
		require.False(t, policy.RequiresAuth("/about"))
	})

	t.Run("query string ignored", func(t *testing.T) {
		require.True(t, policy.RequiresAuth("/journal/42?tab=notes"))
		require.False(t, policy.RequiresAuth("/?welcome=1"))
	})
}

func TestPolicy_CustomPrefixes(t *testing.T) {
	policy := routeguard.New("/admin")

	require.True(t, policy.RequiresAuth("/admin"))
	require.True(t, policy.RequiresAuth("/admin/users"))
	require.False(t, policy.RequiresAuth("/journal"))
}

func TestIsAuthSection(t *testing.T) {
	require.True(t, routeguard.IsAuthSection("/auth/login"))
	require.True(t, routeguard.IsAuthSection("/auth/login?redirect=%2Fjournal"))
	require.True(t, routeguard.IsAuthSection("/auth"))
	require.False(t, routeguard.IsAuthSection("/authors"))
	require.False(t, routeguard.IsAuthSection("/dashboard"))
}
