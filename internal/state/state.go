// Package state persists the OAuth2 token between CLI invocations in a
// small bbolt database. The store is opt-in (MENDELEY_TOKEN_STORE); by
// default the CLI stays stateless and the user carries the token in an
// environment variable.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/oauth2"
)

const (
	// storeDirPerm is the permission mode for the store's parent directory.
	storeDirPerm = fs.FileMode(0o700)

	// storeFilePerm is the permission mode for the store database file.
	// The file holds a bearer token, so it must not be group/world readable.
	storeFilePerm = fs.FileMode(0o600)

	// storeOpenTimeout is the maximum time to wait for the bolt database lock.
	storeOpenTimeout = 5 * time.Second
)

var (
	authBucket = []byte("auth")
	tokenKey   = []byte("oauth_token")
)

// Store wraps a bbolt database holding the persisted OAuth2 token.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) a token store at the given path.
// The auth bucket is created on open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), storeDirPerm); err != nil {
		return nil, fmt.Errorf("creating token store directory: %w", err)
	}

	db, err := bolt.Open(path, storeFilePerm, &bolt.Options{Timeout: storeOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(authBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing token store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Token returns the persisted token, or nil if none is stored.
func (s *Store) Token() (*oauth2.Token, error) {
	var raw []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(authBucket).Get(tokenKey); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	if raw == nil {
		return nil, nil
	}

	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decoding stored token: %w", err)
	}

	return &tok, nil
}

// SetToken persists the given token, replacing any previous one.
func (s *Store) SetToken(tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Put(tokenKey, raw)
	})
	if err != nil {
		return fmt.Errorf("writing token: %w", err)
	}

	return nil
}

// ClearToken removes the persisted token, if any.
func (s *Store) ClearToken() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Delete(tokenKey)
	})
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}

	return nil
}
