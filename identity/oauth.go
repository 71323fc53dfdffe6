package identity

import (
	"context"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/tradevault/go-auth-client/storage"
)

// SignInWithOAuth prepares a PKCE authorization request against the backend's
// /authorize endpoint and returns the URL the user-agent should be sent to.
// State, verifier and nonce are parked in durable storage so the redirect
// back can be completed by a fresh process.
func (c *HTTPClient) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	if provider == "" {
		return "", errors.Wrap(ErrInvalidRequest, "[SignInWithOAuth] provider is required")
	}

	state := uuid.New().String()
	nonce := uuid.New().String()
	verifier := oauth2.GenerateVerifier()

	if err := c.store.Set(storage.KeyOAuthState, []byte(state)); err != nil {
		return "", errors.Wrap(err, "[SignInWithOAuth] store state")
	}
	if err := c.store.Set(storage.KeyOAuthVerifier, []byte(verifier)); err != nil {
		return "", errors.Wrap(err, "[SignInWithOAuth] store verifier")
	}
	if err := c.store.Set(storage.KeyOAuthNonce, []byte(nonce)); err != nil {
		return "", errors.Wrap(err, "[SignInWithOAuth] store nonce")
	}

	authURL := c.oauthConfig(provider).AuthCodeURL(
		state,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	)
	return authURL, nil
}

// CompleteOAuth finishes an external redirect sign-in: validates the echoed
// state, exchanges the code with the stored PKCE verifier, verifies the ID
// token when one is returned, and installs the resulting session.
func (c *HTTPClient) CompleteOAuth(ctx context.Context, code, state string) (*Session, *User, error) {
	if code == "" || state == "" {
		return nil, nil, errors.Wrap(ErrInvalidRequest, "[CompleteOAuth] missing code or state")
	}

	storedState, err := c.store.Get(storage.KeyOAuthState)
	if err != nil || string(storedState) != state {
		return nil, nil, errors.Wrap(ErrInvalidOAuthState, "[CompleteOAuth] state validation")
	}
	verifier, err := c.store.Get(storage.KeyOAuthVerifier)
	if err != nil {
		return nil, nil, errors.Wrap(ErrInvalidOAuthState, "[CompleteOAuth] missing verifier")
	}
	storedNonce, _ := c.store.Get(storage.KeyOAuthNonce)

	// One-shot values; clean up before the exchange so a replayed callback
	// cannot reuse them.
	_ = c.store.Delete(storage.KeyOAuthState)
	_ = c.store.Delete(storage.KeyOAuthVerifier)
	_ = c.store.Delete(storage.KeyOAuthNonce)

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, c.apiKeyHTTPClient())
	token, err := c.oauthConfig("").Exchange(
		exchangeCtx,
		code,
		oauth2.VerifierOption(string(verifier)),
	)
	if err != nil {
		return nil, nil, errors.Wrap(ErrBackendUnavailable, err.Error())
	}

	session := &Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}

	var user *User
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		user, err = c.verifyIDToken(ctx, rawIDToken, string(storedNonce))
		if err != nil {
			return nil, nil, errors.Wrap(err, "[CompleteOAuth] verifyIDToken")
		}
	} else if claims, claimsErr := ParseAccessTokenClaims(token.AccessToken); claimsErr == nil {
		user = userFromClaims(claims)
	}

	if err := c.persist(session, user); err != nil {
		return nil, nil, errors.Wrap(err, "[CompleteOAuth] persist")
	}
	c.hub.publish(Event{Type: EventSignedIn, Session: session, User: user})
	return session, user, nil
}

func (c *HTTPClient) verifyIDToken(ctx context.Context, rawIDToken, expectedNonce string) (*User, error) {
	provider, err := c.openIDProvider(ctx)
	if err != nil {
		return nil, err
	}

	idToken, err := provider.Verifier(&oidc.Config{
		ClientID: c.cfg.OAuthClientID,
	}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "ID token verification failed")
	}

	var claims struct {
		Nonce         string `json:"nonce"`
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "failed to extract claims")
	}

	// Nonce must echo what we parked before the redirect, otherwise this is
	// a replayed token.
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return nil, errors.New("invalid nonce")
	}

	return &User{
		ID:            claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func (c *HTTPClient) openIDProvider(ctx context.Context) (*oidc.Provider, error) {
	c.oidcOnce.Do(func() {
		c.oidcProvider, c.oidcErr = oidc.NewProvider(
			oidc.ClientContext(ctx, c.apiKeyHTTPClient()),
			c.cfg.BaseURL,
		)
	})
	if c.oidcErr != nil {
		return nil, errors.Wrap(ErrBackendUnavailable, c.oidcErr.Error())
	}
	return c.oidcProvider, nil
}

func (c *HTTPClient) oauthConfig(provider string) *oauth2.Config {
	authURL := c.cfg.BaseURL + "/authorize"
	if provider != "" {
		authURL += "?provider=" + url.QueryEscape(provider)
	}
	return &oauth2.Config{
		ClientID:    c.cfg.OAuthClientID,
		RedirectURL: c.cfg.OAuthRedirectURL,
		Scopes:      []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: c.cfg.BaseURL + "/token",
		},
	}
}

// apiKeyHTTPClient wraps the underlying transport so oauth2/oidc calls carry
// the backend API key like every other request.
func (c *HTTPClient) apiKeyHTTPClient() *http.Client {
	base := c.httpc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   c.httpc.Timeout,
		Transport: &apiKeyTransport{apiKey: c.cfg.APIKey, base: base},
	}
}

type apiKeyTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("apikey", t.apiKey)
	return t.base.RoundTrip(cloned)
}
