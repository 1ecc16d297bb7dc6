// Package bbolt provides a BBolt-backed storage.Slots implementation.
package bbolt

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/lectern/storage"
)

var slotsBucket = []byte("__session_slots")

// Store implements storage.Slots backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Slots = (*Store)(nil)

// NewRepository returns a Store backed by the given BBolt database and makes
// sure the slots bucket exists.
func NewRepository(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(slotsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating slots bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Store.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(name string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(slotsBucket).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%s: %w", name, storage.ErrNotFound)
		}
		// data is only valid for the life of the transaction.
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Put(name, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(slotsBucket).Put([]byte(name), []byte(value))
	})
}

func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(slotsBucket).Delete([]byte(name))
	})
}

type boltBatchTx struct {
	bucket *bbolt.Bucket
}

func (tx *boltBatchTx) Put(name, value string) error {
	return tx.bucket.Put([]byte(name), []byte(value))
}

func (tx *boltBatchTx) Delete(name string) error {
	return tx.bucket.Delete([]byte(name))
}

// Batch runs fn inside a single read-write transaction. Returning an error
// from fn rolls back every write it made.
func (s *Store) Batch(fn func(tx storage.BatchTx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltBatchTx{bucket: tx.Bucket(slotsBucket)})
	})
}
