// Package storage persists the client's map session and portal sign-in
// between runs in a local JSON file.
package storage

import (
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atinyakov/GophMaps/internal/client/auth"
	"github.com/atinyakov/GophMaps/internal/mapping"
)

// LocalStorage is the state file. Credentials are sealed with aead; a nil
// aead disables credential persistence.
type LocalStorage struct {
	path  string
	aead  cipher.AEAD
	mu    sync.Mutex
	state State
	now   func() time.Time
}

// Open loads the state file at path. A missing file yields empty state.
func Open(path string, aead cipher.AEAD) (*LocalStorage, error) {
	ls := &LocalStorage{path: path, aead: aead, now: time.Now}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ls, nil
		}
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&ls.state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ls, nil
}

// Path returns the state file location.
func (ls *LocalStorage) Path() string {
	return ls.path
}

// Version returns the time of the last write as unix seconds.
func (ls *LocalStorage) Version() int64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.state.Version
}

// Save writes the state file, replacing it atomically.
func (ls *LocalStorage) Save() error {
	ls.mu.Lock()
	ls.state.Version = ls.now().Unix()
	data, err := json.MarshalIndent(&ls.state, "", "  ")
	ls.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(ls.path), 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(ls.path), ".state-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), ls.path)
}

// PutMap records m and its item association.
func (ls *LocalStorage) PutMap(m *mapping.Map) error {
	data, err := mapping.MarshalWebMap(m)
	if err != nil {
		return err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.state.Map = data
	ls.state.Item = nil
	if m.Item != nil {
		it := *m.Item
		ls.state.Item = &it
	}
	return nil
}

// Map returns the stored map, or nil if none was stored.
func (ls *LocalStorage) Map() (*mapping.Map, error) {
	ls.mu.Lock()
	data, item := ls.state.Map, ls.state.Item
	ls.mu.Unlock()

	if len(data) == 0 {
		return nil, nil
	}
	m, err := mapping.UnmarshalWebMap(data)
	if err != nil {
		return nil, err
	}
	if item != nil {
		it := *item
		m.Item = &it
	}
	return m, nil
}

// PutCredential seals and records cred.
func (ls *LocalStorage) PutCredential(cred *auth.Credential) error {
	if ls.aead == nil {
		return errors.New("credential storage disabled")
	}
	if cred == nil || cred.Token == "" {
		return errors.New("empty credential")
	}
	token, err := seal(ls.aead, []byte(cred.Token))
	if err != nil {
		return err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.state.Credential = &SealedCredential{
		ServiceURL: cred.ServiceURL,
		Username:   cred.Username,
		Token:      token,
		ExpiresAt:  cred.ExpiresAt,
	}
	return nil
}

// Credential returns the stored credential if it can be opened and has not expired.
func (ls *LocalStorage) Credential() (*auth.Credential, bool) {
	ls.mu.Lock()
	sc := ls.state.Credential
	ls.mu.Unlock()

	if sc == nil || ls.aead == nil {
		return nil, false
	}
	token, err := open(ls.aead, sc.Token)
	if err != nil {
		return nil, false
	}
	cred := &auth.Credential{
		ServiceURL: sc.ServiceURL,
		Username:   sc.Username,
		Token:      string(token),
		ExpiresAt:  sc.ExpiresAt,
	}
	if cred.Expired(ls.now()) {
		return nil, false
	}
	return cred, true
}

// ClearCredential forgets the stored credential.
func (ls *LocalStorage) ClearCredential() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.state.Credential = nil
}
