package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tradevault/go-auth-client/identity"
	"github.com/tradevault/go-auth-client/storage"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "Password123"
)

// backendFixture is a scripted GoTrue-style backend plus a client wired to it.
type backendFixture struct {
	server *httptest.Server
	client *identity.HTTPClient
	store  *storage.MemoryStore
	mux    *http.ServeMux
}

func setupBackendFixture(t *testing.T) *backendFixture {
	t.Helper()

	f := &backendFixture{
		store: storage.NewMemoryStore(),
		mux:   http.NewServeMux(),
	}
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)

	client, err := identity.NewHTTPClient(identity.Config{
		BaseURL:       f.server.URL,
		APIKey:        "anon-key",
		OAuthClientID: "test-client",
	}, f.store)
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *backendFixture) scriptPasswordGrant(t *testing.T) {
	t.Helper()
	f.mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["email"] != testEmail || body["password"] != testPassword {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":             "invalid_grant",
					"error_description": "Invalid login credentials",
				})
				return
			}
			writeTokenResponse(w, "access-1", "refresh-1")
		case "refresh_token":
			if body["refresh_token"] == "" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			writeTokenResponse(w, "access-2", "refresh-2")
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
}

func writeTokenResponse(w http.ResponseWriter, accessToken, refreshToken string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  accessToken,
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": refreshToken,
		"user": map[string]any{
			"id":                 "user-1",
			"email":              testEmail,
			"email_confirmed_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func TestHTTPClient_RequiresConfiguration(t *testing.T) {
	_, err := identity.NewHTTPClient(identity.Config{APIKey: "k"}, storage.NewMemoryStore())
	require.ErrorIs(t, err, identity.ErrConfiguration)

	_, err = identity.NewHTTPClient(identity.Config{BaseURL: "https://x"}, storage.NewMemoryStore())
	require.ErrorIs(t, err, identity.ErrConfiguration)

	_, err = identity.NewHTTPClient(identity.Config{BaseURL: "https://x", APIKey: "k"}, nil)
	require.ErrorIs(t, err, identity.ErrConfiguration)
}

func TestHTTPClient_SignInWithPassword(t *testing.T) {
	f := setupBackendFixture(t)
	f.scriptPasswordGrant(t)

	session, user, err := f.client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, "access-1", session.AccessToken)
	require.Equal(t, "user-1", user.ID)
	require.True(t, user.EmailVerified)

	// Session was persisted: a fresh read finds it
	persisted, err := f.client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", persisted.AccessToken)
}

func TestHTTPClient_SignInWithPassword_InvalidCredentials(t *testing.T) {
	f := setupBackendFixture(t)
	f.scriptPasswordGrant(t)

	_, _, err := f.client.SignInWithPassword(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	// Nothing persisted
	session, err := f.client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestHTTPClient_SignInEmitsEvent(t *testing.T) {
	f := setupBackendFixture(t)
	f.scriptPasswordGrant(t)

	sub := f.client.Subscribe()
	defer sub.Unsubscribe()

	_, _, err := f.client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	select {
	case event := <-sub.Events():
		require.Equal(t, identity.EventSignedIn, event.Type)
		require.NotNil(t, event.Session)
	case <-time.After(time.Second):
		t.Fatal("expected SIGNED_IN event")
	}
}

func TestHTTPClient_SignUp_EmailVerificationRequired(t *testing.T) {
	f := setupBackendFixture(t)
	f.mux.HandleFunc("/signup", func(w http.ResponseWriter, r *http.Request) {
		// No access_token: backend wants email confirmation first
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                   "user-2",
			"email":                "new@example.com",
			"confirmation_sent_at": time.Now().UTC().Format(time.RFC3339),
		})
	})

	result, err := f.client.SignUp(context.Background(), "new@example.com", testPassword)
	require.NoError(t, err)
	require.Nil(t, result.Session)
	require.True(t, result.NeedsEmailVerification)
	require.Equal(t, "new@example.com", result.User.Email)

	session, err := f.client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestHTTPClient_SignUp_WeakPasswordRejectedLocally(t *testing.T) {
	f := setupBackendFixture(t)

	_, err := f.client.SignUp(context.Background(), "new@example.com", "short")
	require.ErrorIs(t, err, identity.ErrWeakPassword)
}

func TestHTTPClient_RequestPasswordReset_UniformResponse(t *testing.T) {
	f := setupBackendFixture(t)
	f.mux.HandleFunc("/recover", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "unknown@nowhere.com" {
			// A leaky backend answer must not reach callers
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "User not found"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, f.client.RequestPasswordReset(context.Background(), "unknown@nowhere.com"))
	require.NoError(t, f.client.RequestPasswordReset(context.Background(), testEmail))
}

func TestHTTPClient_SignOut_Idempotent(t *testing.T) {
	f := setupBackendFixture(t)
	f.scriptPasswordGrant(t)
	f.mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	_, _, err := f.client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, f.client.SignOut(context.Background()))
	require.NoError(t, f.client.SignOut(context.Background()))

	session, err := f.client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestHTTPClient_CurrentSession_RefreshesExpired(t *testing.T) {
	f := setupBackendFixture(t)
	f.scriptPasswordGrant(t)

	now := time.Now()
	client, err := identity.NewHTTPClient(identity.Config{
		BaseURL: f.server.URL,
		APIKey:  "anon-key",
	}, f.store, identity.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)

	_, _, err = client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	// Jump past expiry; the next read must exchange the refresh token
	now = now.Add(2 * time.Hour)

	session, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, "access-2", session.AccessToken)
}

func TestHTTPClient_UpdatePassword_RequiresSession(t *testing.T) {
	f := setupBackendFixture(t)

	err := f.client.UpdatePassword(context.Background(), "NewPassword1")
	require.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestHTTPClient_SignInWithOAuth_BuildsAuthorizeURL(t *testing.T) {
	f := setupBackendFixture(t)

	authURL, err := f.client.SignInWithOAuth(context.Background(), "google")
	require.NoError(t, err)
	require.Contains(t, authURL, f.server.URL+"/authorize")
	require.Contains(t, authURL, "provider=google")
	require.Contains(t, authURL, "code_challenge_method=S256")
	require.Contains(t, authURL, "state=")

	// Verifier and state parked for the redirect-back
	_, err = f.store.Get(storage.KeyOAuthState)
	require.NoError(t, err)
	_, err = f.store.Get(storage.KeyOAuthVerifier)
	require.NoError(t, err)
}

func TestHTTPClient_CompleteOAuth_RejectsUnknownState(t *testing.T) {
	f := setupBackendFixture(t)

	_, err := f.client.SignInWithOAuth(context.Background(), "google")
	require.NoError(t, err)

	_, _, err = f.client.CompleteOAuth(context.Background(), "some-code", "forged-state")
	require.ErrorIs(t, err, identity.ErrInvalidOAuthState)
}

func TestHTTPClient_NetworkErrorMapsToBackendUnavailable(t *testing.T) {
	store := storage.NewMemoryStore()
	client, err := identity.NewHTTPClient(identity.Config{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		APIKey:  "anon-key",
	}, store)
	require.NoError(t, err)

	_, _, err = client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, identity.ErrBackendUnavailable)
}
