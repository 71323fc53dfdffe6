package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"

	"github.com/tradevault/go-auth-client/internal/utils"
	"github.com/tradevault/go-auth-client/storage"
)

const defaultRefreshMargin = 30 * time.Second

// Config carries the connection parameters for the hosted identity backend.
type Config struct {
	BaseURL          string // e.g. "https://abc.supabase.co/auth/v1"
	APIKey           string // public (anon) API key sent on every request
	OAuthClientID    string // client ID used for external OAuth redirect sign-in
	OAuthRedirectURL string // where the provider sends the user-agent back
	RefreshMargin    time.Duration
}

// HTTPClient implements Client against a GoTrue-compatible REST surface.
// Sessions are persisted through the injected storage.Store so they survive
// restarts; lifecycle changes fan out through the event hub.
type HTTPClient struct {
	cfg     Config
	store   storage.Store
	httpc   *http.Client
	hub     *eventHub
	nowTime func() time.Time

	oidcOnce     sync.Once
	oidcProvider *oidc.Provider
	oidcErr      error

	sessionLock sync.Mutex // serialises persisted-session read/refresh/write
}

var _ Client = (*HTTPClient)(nil)

// HTTPClientOption defines a function type to modify the HTTPClient instance.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client (primarily for testing).
func WithHTTPClient(httpc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpc = httpc
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) HTTPClientOption {
	return func(c *HTTPClient) {
		c.nowTime = nowFunc
	}
}

// NewHTTPClient validates the backend connection parameters and builds the
// client. Missing parameters are fatal here rather than surfacing later as a
// silently non-functional client.
func NewHTTPClient(cfg Config, store storage.Store, options ...HTTPClientOption) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.Wrap(ErrConfiguration, "[NewHTTPClient] backend URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.Wrap(ErrConfiguration, "[NewHTTPClient] backend API key is required")
	}
	if store == nil {
		return nil, errors.Wrap(ErrConfiguration, "[NewHTTPClient] storage is required")
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = defaultRefreshMargin
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := &HTTPClient{
		cfg:     cfg,
		store:   store,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		hub:     newEventHub(),
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// persistedState is the blob written to durable storage on sign-in and
// refresh.
type persistedState struct {
	Session *Session `json:"session"`
	User    *User    `json:"user,omitempty"`
}

func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, *User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}

	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[SignInWithPassword] token request")
	}

	session, user := c.sessionFromTokenResponse(&resp)
	if err := c.persist(session, user); err != nil {
		return nil, nil, errors.Wrap(err, "[SignInWithPassword] persist")
	}
	c.hub.publish(Event{Type: EventSignedIn, Session: session, User: user})
	return session, user, nil
}

func (c *HTTPClient) SignInWithMagicLink(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return errors.Wrap(ErrInvalidRequest, err.Error())
	}

	err := c.do(ctx, http.MethodPost, "/otp", "", map[string]any{
		"email":       email,
		"create_user": false,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "[SignInWithMagicLink] otp request")
	}
	return nil
}

func (c *HTTPClient) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, errors.Wrap(ErrWeakPassword, err.Error())
	}

	body, err := c.doRaw(ctx, http.MethodPost, "/signup", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[SignUp] signup request")
	}

	// A backend with autoconfirm enabled answers with a full token grant; one
	// requiring email verification answers with a bare user record.
	var resp tokenResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr == nil && resp.AccessToken != "" {
		session, user := c.sessionFromTokenResponse(&resp)
		if err := c.persist(session, user); err != nil {
			return nil, errors.Wrap(err, "[SignUp] persist")
		}
		c.hub.publish(Event{Type: EventSignedIn, Session: session, User: user})
		return &SignUpResult{Session: session, User: user}, nil
	}

	var payload userPayload
	if jsonErr := json.Unmarshal(body, &payload); jsonErr != nil {
		return nil, errors.Wrap(jsonErr, "[SignUp] decode user")
	}
	return &SignUpResult{
		User:                   payload.toUser(),
		NeedsEmailVerification: true,
	}, nil
}

// RequestPasswordReset never reveals whether the email is registered: a
// backend "user not found" answer is collapsed into the same accepted
// result as a real send.
func (c *HTTPClient) RequestPasswordReset(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return errors.Wrap(ErrInvalidRequest, err.Error())
	}

	err := c.do(ctx, http.MethodPost, "/recover", "", map[string]string{
		"email": email,
	}, nil)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return errors.Wrap(err, "[RequestPasswordReset] recover request")
	}
	return nil
}

func (c *HTTPClient) UpdatePassword(ctx context.Context, newPassword string) error {
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return errors.Wrap(ErrWeakPassword, err.Error())
	}

	session, err := c.CurrentSession(ctx)
	if err != nil {
		return errors.Wrap(err, "[UpdatePassword] CurrentSession")
	}
	if session == nil {
		return errors.Wrap(ErrUnauthenticated, "[UpdatePassword] no session")
	}

	err = c.do(ctx, http.MethodPut, "/user", session.AccessToken, map[string]string{
		"password": newPassword,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "[UpdatePassword] user request")
	}
	return nil
}

func (c *HTTPClient) SignOut(ctx context.Context) error {
	c.sessionLock.Lock()
	state, loadErr := c.loadPersisted()
	c.sessionLock.Unlock()

	if loadErr != nil || state == nil || state.Session == nil {
		// Already signed out; clearing again keeps the call idempotent.
		_ = c.store.Delete(storage.KeySession)
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/logout", state.Session.AccessToken, nil, nil)
	// A rejected or unknown token means the backend already considers the
	// session dead, which is the outcome sign-out wants.
	if err != nil && !errors.Is(err, ErrUnauthenticated) {
		_ = c.store.Delete(storage.KeySession)
		c.hub.publish(Event{Type: EventSignedOut})
		return errors.Wrap(err, "[SignOut] logout request")
	}

	if err := c.store.Delete(storage.KeySession); err != nil {
		return errors.Wrap(err, "[SignOut] clear persisted session")
	}
	c.hub.publish(Event{Type: EventSignedOut})
	return nil
}

func (c *HTTPClient) CurrentSession(ctx context.Context) (*Session, error) {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	state, err := c.loadPersisted()
	if err != nil {
		return nil, err
	}
	if state == nil || state.Session == nil {
		return nil, nil
	}

	if !state.Session.ExpiresWithin(c.nowTime(), c.cfg.RefreshMargin) {
		return state.Session, nil
	}

	if state.Session.RefreshToken == "" {
		// Expired with nothing to refresh from: the session is gone.
		_ = c.store.Delete(storage.KeySession)
		c.hub.publish(Event{Type: EventSignedOut})
		return nil, nil
	}

	session, user, err := c.refreshLocked(ctx, state.Session.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			return nil, err
		}
		// Refresh token rejected: treat as signed out.
		_ = c.store.Delete(storage.KeySession)
		c.hub.publish(Event{Type: EventSignedOut})
		return nil, nil
	}
	c.hub.publish(Event{Type: EventTokenRefreshed, Session: session, User: user})
	return session, nil
}

func (c *HTTPClient) CurrentUser(ctx context.Context) (*User, error) {
	session, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	var payload userPayload
	err = c.do(ctx, http.MethodGet, "/user", session.AccessToken, nil, &payload)
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			// Offline fallback: the token itself carries enough identity.
			claims, claimsErr := ParseAccessTokenClaims(session.AccessToken)
			if claimsErr != nil {
				return nil, errors.Wrap(err, "[CurrentUser] user request")
			}
			return userFromClaims(claims), nil
		}
		return nil, errors.Wrap(err, "[CurrentUser] user request")
	}

	user := payload.toUser()
	_ = c.persist(session, user)
	return user, nil
}

func (c *HTTPClient) RefreshSession(ctx context.Context) (*Session, *User, error) {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	state, err := c.loadPersisted()
	if err != nil {
		return nil, nil, err
	}
	if state == nil || state.Session == nil || state.Session.RefreshToken == "" {
		return nil, nil, errors.Wrap(ErrUnauthenticated, "[RefreshSession] no refresh token")
	}

	session, user, err := c.refreshLocked(ctx, state.Session.RefreshToken)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[RefreshSession] refresh grant")
	}
	c.hub.publish(Event{Type: EventTokenRefreshed, Session: session, User: user})
	return session, user, nil
}

func (c *HTTPClient) Subscribe() *Subscription {
	return c.hub.subscribe()
}

// refreshLocked exchanges the refresh token and persists the result. Callers
// hold sessionLock.
func (c *HTTPClient) refreshLocked(ctx context.Context, refreshToken string) (*Session, *User, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": refreshToken,
	}, &resp)
	if err != nil {
		return nil, nil, err
	}

	session, user := c.sessionFromTokenResponse(&resp)
	if err := c.persistLocked(session, user); err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

func (c *HTTPClient) loadPersisted() (*persistedState, error) {
	raw, err := c.store.Get(storage.KeySession)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[loadPersisted] storage.Get")
	}

	var state persistedState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, errors.Wrap(err, "[loadPersisted] Unmarshal")
	}
	return &state, nil
}

func (c *HTTPClient) persist(session *Session, user *User) error {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	return c.persistLocked(session, user)
}

func (c *HTTPClient) persistLocked(session *Session, user *User) error {
	raw, err := json.Marshal(persistedState{Session: session, User: user})
	if err != nil {
		return errors.Wrap(err, "[persist] Marshal")
	}
	return c.store.Set(storage.KeySession, raw)
}

// tokenResponse is the backend's token grant answer.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    *int64       `json:"expires_in"`
	ExpiresAt    *int64       `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user"`
}

// userPayload is the backend's wire shape for a user record.
type userPayload struct {
	ID                 string         `json:"id"`
	Email              string         `json:"email"`
	EmailConfirmedAt   *time.Time     `json:"email_confirmed_at"`
	ConfirmationSentAt *time.Time     `json:"confirmation_sent_at"`
	CreatedAt          *time.Time     `json:"created_at"`
	LastSignInAt       *time.Time     `json:"last_sign_in_at"`
	AppMetadata        map[string]any `json:"app_metadata"`
	UserMetadata       map[string]any `json:"user_metadata"`
}

func (p *userPayload) toUser() *User {
	user := &User{
		ID:            p.ID,
		Email:         p.Email,
		EmailVerified: p.EmailConfirmedAt != nil,
		Metadata:      p.UserMetadata,
		CreatedAt:     utils.ValueOr(p.CreatedAt, time.Time{}),
		LastSignInAt:  utils.ValueOr(p.LastSignInAt, time.Time{}),
	}
	if providers, ok := p.AppMetadata["providers"].([]any); ok {
		user.Providers = utils.ToStringSlice(providers)
	}
	return user
}

func (c *HTTPClient) sessionFromTokenResponse(resp *tokenResponse) (*Session, *User) {
	session := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}

	switch {
	case resp.ExpiresAt != nil:
		session.ExpiresAt = time.Unix(*resp.ExpiresAt, 0)
	case resp.ExpiresIn != nil:
		session.ExpiresAt = c.nowTime().Add(time.Duration(*resp.ExpiresIn) * time.Second)
	default:
		// No explicit expiry on the response, fall back to the token's claim.
		if claims, err := ParseAccessTokenClaims(resp.AccessToken); err == nil {
			session.ExpiresAt = claims.ExpiresAt
		}
	}

	var user *User
	if resp.User != nil {
		user = resp.User.toUser()
	} else if claims, err := ParseAccessTokenClaims(resp.AccessToken); err == nil {
		user = userFromClaims(claims)
	}
	return session, user
}

// do issues a backend request and decodes the answer into out when non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path, bearer string, body, out any) error {
	raw, err := c.doRaw(ctx, method, path, bearer, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "[do] decode response")
	}
	return nil
}

func (c *HTTPClient) doRaw(ctx context.Context, method, path, bearer string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[doRaw] encode body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "[doRaw] NewRequest")
	}
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrBackendUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(ErrBackendUnavailable, err.Error())
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}
	return nil, c.mapStatusError(resp.StatusCode, raw)
}

// apiErrorPayload covers the error body shapes the backend answers with.
type apiErrorPayload struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (p apiErrorPayload) text() string {
	for _, s := range []string{p.ErrorDescription, p.Msg, p.Message, p.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *HTTPClient) mapStatusError(status int, body []byte) error {
	var payload apiErrorPayload
	_ = json.Unmarshal(body, &payload)
	message := payload.text()

	var sentinel error
	switch {
	case status >= 500:
		sentinel = ErrBackendUnavailable
	case status == http.StatusUnauthorized:
		sentinel = ErrUnauthenticated
	case payload.Error == "invalid_grant",
		strings.Contains(strings.ToLower(message), "invalid login credentials"):
		sentinel = ErrInvalidCredentials
	case payload.ErrorCode == "email_not_confirmed":
		sentinel = ErrEmailNotVerified
	case status == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(message), "password"):
		sentinel = ErrWeakPassword
	default:
		sentinel = ErrInvalidRequest
	}

	if message == "" {
		message = http.StatusText(status)
	}
	return errors.Wrapf(sentinel, "backend responded %d: %s", status, message)
}
