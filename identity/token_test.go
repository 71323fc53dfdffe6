package identity_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/tradevault/go-auth-client/identity"
)

func signTestToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret-test-secret-test-sec"))
	require.NoError(t, err)
	return signed
}

func TestParseAccessTokenClaims(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signTestToken(t, jwtlib.MapClaims{
		"sub":   "user-1",
		"email": "john.doe@example.com",
		"exp":   expiry.Unix(),
		"app_metadata": map[string]any{
			"providers": []any{"email", "google"},
		},
	})

	claims, err := identity.ParseAccessTokenClaims(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Sub)
	require.Equal(t, "john.doe@example.com", claims.Email)
	require.Equal(t, expiry.Unix(), claims.ExpiresAt.Unix())
	require.Equal(t, []string{"email", "google"}, claims.Providers)
}

func TestParseAccessTokenClaims_EmptyToken(t *testing.T) {
	_, err := identity.ParseAccessTokenClaims("")
	require.Error(t, err)

	_, err = identity.ParseAccessTokenClaims("not-a-jwt")
	require.Error(t, err)
}

func TestSession_Expiry(t *testing.T) {
	now := time.Now()
	session := &identity.Session{ExpiresAt: now.Add(time.Minute)}

	require.False(t, session.Expired(now))
	require.True(t, session.Expired(now.Add(2*time.Minute)))
	require.True(t, session.ExpiresWithin(now, 5*time.Minute))
	require.False(t, session.ExpiresWithin(now, 10*time.Second))
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, identity.ValidatePasswordStrength("Passw0rd"))
	require.Error(t, identity.ValidatePasswordStrength("short1A"))
	require.Error(t, identity.ValidatePasswordStrength("alllowercase1"))
	require.Error(t, identity.ValidatePasswordStrength("ALLUPPERCASE1"))
	require.Error(t, identity.ValidatePasswordStrength("NoNumbersHere"))
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, identity.ValidateEmail("a@b.com"))
	require.Error(t, identity.ValidateEmail(""))
	require.Error(t, identity.ValidateEmail("not-an-email"))
}
