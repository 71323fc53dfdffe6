package storage

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	storeFileName = "auth_store.bin"
	keyFileName   = "auth_store.key"
	nonceSize     = 24
	keySize       = 32
)

// FileStore persists the key/value map as a single secretbox-sealed file.
// Session tokens land on disk, so the file is never written in the clear;
// the sealing key is generated on first use and kept alongside with 0600
// permissions.
type FileStore struct {
	path    string
	keyPath string
	key     [keySize]byte
	lock    sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (or initialises) a sealed store under dataFolder.
func NewFileStore(dataFolder string) (*FileStore, error) {
	if err := os.MkdirAll(dataFolder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] MkdirAll")
	}

	fs := &FileStore{
		path:    filepath.Join(dataFolder, storeFileName),
		keyPath: filepath.Join(dataFolder, keyFileName),
	}
	if err := fs.loadOrCreateKey(); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] loadOrCreateKey")
	}
	return fs, nil
}

func (fs *FileStore) Get(key string) ([]byte, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.read()
	if err != nil {
		return nil, err
	}
	value, ok := values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

func (fs *FileStore) Set(key string, value []byte) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.read()
	if err != nil {
		return err
	}
	values[key] = value
	return fs.write(values)
}

func (fs *FileStore) Delete(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return fs.write(values)
}

func (fs *FileStore) read() (map[string][]byte, error) {
	sealed, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.read] ReadFile")
	}
	if len(sealed) < nonceSize {
		return nil, errors.New("[FileStore.read] store file truncated")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &fs.key)
	if !ok {
		return nil, errors.New("[FileStore.read] store file failed authentication")
	}

	values := map[string][]byte{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, errors.Wrap(err, "[FileStore.read] Unmarshal")
	}
	return values, nil
}

func (fs *FileStore) write(values map[string][]byte) error {
	plain, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "[FileStore.write] Marshal")
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "[FileStore.write] rand.Read")
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &fs.key)

	if err := os.WriteFile(fs.path, sealed, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.write] WriteFile")
	}
	return nil
}

func (fs *FileStore) loadOrCreateKey() error {
	keyBytes, err := os.ReadFile(fs.keyPath)
	if err == nil {
		if len(keyBytes) != keySize {
			return errors.New("[FileStore.loadOrCreateKey] bad key length")
		}
		copy(fs.key[:], keyBytes)
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.loadOrCreateKey] ReadFile")
	}

	if _, err := rand.Read(fs.key[:]); err != nil {
		return errors.Wrap(err, "[FileStore.loadOrCreateKey] rand.Read")
	}
	if err := os.WriteFile(fs.keyPath, fs.key[:], 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.loadOrCreateKey] WriteFile")
	}
	return nil
}
