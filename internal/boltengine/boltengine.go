// Package boltengine implements the key-value engine on top of an embedded
// bbolt database stored in a single file.
package boltengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MikhailWahib/caskdb/internal/shared"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("kvs")

// errMissing aborts a remove transaction when the key is absent.
var errMissing = errors.New("key not present")

// Engine stores every key in one bbolt bucket.
type Engine struct {
	db *bbolt.DB
}

// Open opens or creates the database file inside dir.
func Open(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory %s: %w", shared.ErrOpen, dir, err)
	}

	path := filepath.Join(dir, shared.BoltFileName)
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", shared.ErrOpen, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to create bucket: %w", shared.ErrOpen, err)
	}
	return &Engine{db: db}, nil
}

// Set stores value under key.
func (e *Engine) Set(key, value string) error {
	if e.db == nil {
		return shared.ErrClosed
	}
	err := e.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("%w: failed to set %q: %w", shared.ErrIO, key, err)
	}
	return nil
}

// Get returns the value stored under key.
func (e *Engine) Get(key string) (string, bool, error) {
	if e.db == nil {
		return "", false, shared.ErrClosed
	}
	var (
		value string
		found bool
	)
	err := e.db.View(func(tx *bbolt.Tx) error {
		// The slice is only valid inside the transaction.
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to get %q: %w", shared.ErrIO, key, err)
	}
	return value, found, nil
}

// Remove deletes key, failing with ErrKeyNotFound when it is absent.
func (e *Engine) Remove(key string) error {
	if e.db == nil {
		return shared.ErrClosed
	}
	err := e.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(key)) == nil {
			return errMissing
		}
		return b.Delete([]byte(key))
	})
	if errors.Is(err, errMissing) {
		return fmt.Errorf("%w: %q", shared.ErrKeyNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to remove %q: %w", shared.ErrIO, key, err)
	}
	return nil
}

// Keys returns all keys in ascending byte order.
func (e *Engine) Keys() ([]string, error) {
	if e.db == nil {
		return nil, shared.ErrClosed
	}
	var keys []string
	err := e.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrIO, err)
	}
	return keys, nil
}

// Close closes the database file.
func (e *Engine) Close() error {
	if e.db == nil {
		return shared.ErrClosed
	}
	err := e.db.Close()
	e.db = nil
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrIO, err)
	}
	return nil
}
