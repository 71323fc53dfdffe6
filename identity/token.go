package identity

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/tradevault/go-auth-client/internal/utils"
)

// TokenClaims is the subset of access-token claims the client reads locally.
// The token is parsed without signature verification: the backend signed it
// and is the only party that validates it, the client just needs the
// metadata.
type TokenClaims struct {
	Sub           string
	Email         string
	EmailVerified bool
	Providers     []string
	ExpiresAt     time.Time
}

// ParseAccessTokenClaims extracts claims from a raw JWT access token.
func ParseAccessTokenClaims(rawToken string) (*TokenClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("[ParseAccessTokenClaims] empty token")
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "[ParseAccessTokenClaims] ParseUnverified")
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[ParseAccessTokenClaims] error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	exp, _ := claims["exp"].(float64)

	tc := &TokenClaims{
		Sub:   sub,
		Email: email,
	}
	if exp > 0 {
		tc.ExpiresAt = time.Unix(int64(exp), 0)
	}

	if appMetadata, ok := claims["app_metadata"].(map[string]any); ok {
		if providers, ok := appMetadata["providers"].([]any); ok {
			tc.Providers = utils.ToStringSlice(providers)
		}
	}
	if userMetadata, ok := claims["user_metadata"].(map[string]any); ok {
		if verified, ok := userMetadata["email_verified"].(bool); ok {
			tc.EmailVerified = verified
		}
	}

	return tc, nil
}

// userFromClaims builds a minimal User when the backend's user endpoint is
// unreachable and the token is all we have.
func userFromClaims(claims *TokenClaims) *User {
	return &User{
		ID:            claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Providers:     claims.Providers,
	}
}
