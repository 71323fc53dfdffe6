package storage_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tradevault/go-auth-client/storage"
)

func TestFileStore_RoundTrip(t *testing.T) {
	folder := t.TempDir()

	fs, err := storage.NewFileStore(folder)
	require.NoError(t, err)

	require.NoError(t, fs.Set(storage.KeySession, []byte(`{"access_token":"abc"}`)))

	value, err := fs.Get(storage.KeySession)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"access_token":"abc"}`), value)

	// Reopen against the same folder, value survives
	fs2, err := storage.NewFileStore(folder)
	require.NoError(t, err)
	value, err = fs2.Get(storage.KeySession)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"access_token":"abc"}`), value)
}

func TestFileStore_SealedAtRest(t *testing.T) {
	folder := t.TempDir()

	fs, err := storage.NewFileStore(folder)
	require.NoError(t, err)

	secret := []byte("super-secret-refresh-token")
	require.NoError(t, fs.Set(storage.KeySession, secret))

	raw, err := os.ReadFile(filepath.Join(folder, "auth_store.bin"))
	require.NoError(t, err)
	require.False(t, bytes.Contains(raw, secret), "token must not appear in plaintext on disk")
	require.False(t, bytes.Contains(raw, []byte(storage.KeySession)), "key names must not appear in plaintext on disk")
}

func TestFileStore_GetMissingKey(t *testing.T) {
	fs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Get("nope")
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestFileStore_DeleteIsIdempotent(t *testing.T) {
	fs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Set(storage.KeyRememberMe, []byte("1")))
	require.NoError(t, fs.Delete(storage.KeyRememberMe))
	require.NoError(t, fs.Delete(storage.KeyRememberMe))

	_, err = fs.Get(storage.KeyRememberMe)
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
}
