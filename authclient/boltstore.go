package authclient

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	stateDirPerm  = fs.FileMode(0o700)
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout bounds the wait for the bolt file lock when another
	// process holds the database.
	stateOpenTimeout = 5 * time.Second
)

var (
	authBucket = []byte("auth")
	stateKey   = []byte("state")
)

// BoltStore is a durable StateStore backed by a bbolt file, so the auth
// state survives process restarts.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the state database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(authBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) Load() (AuthState, error) {
	var state AuthState
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(authBucket).Get(stateKey)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &state)
	})
	return state, err
}

func (b *BoltStore) Save(s AuthState) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Put(stateKey, payload)
	})
}

func (b *BoltStore) Clear() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Delete(stateKey)
	})
}
