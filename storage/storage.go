// Package storage provides the durable client-side key/value store used for
// session persistence, the remember-me marker, and in-flight OAuth state.
// Values survive process restarts; only the auth subsystem reads or writes
// through it.
package storage

import "errors"

var ErrKeyNotFound = errors.New("storage key not found")

// Well-known keys. The controller and identity client are the only writers.
const (
	KeySession       = "auth.session"
	KeyRememberMe    = "auth.remember_me"
	KeyOAuthState    = "auth.oauth_state"
	KeyOAuthVerifier = "auth.oauth_verifier"
	KeyOAuthNonce    = "auth.oauth_nonce"
)

type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set creates or replaces the value for key.
	Set(key string, value []byte) error

	// Delete removes a key. Deleting an absent key is a no-op.
	Delete(key string) error
}
