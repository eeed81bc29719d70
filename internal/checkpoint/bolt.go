package checkpoint

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	processedBucket = []byte("processed")
)

// BoltStore is a Store backed by a bbolt file, so a restarted worker
// does not replay events the previous run completed.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the ledger at the given path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(processedBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create processed bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Seen reports whether the event id has been marked
func (s *BoltStore) Seen(eventID string) (bool, error) {
	var seen bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		seen = tx.Bucket(processedBucket).Get([]byte(eventID)) != nil
		return nil
	})
	return seen, err
}

// Mark records the event id with the completion time as its value
func (s *BoltStore) Mark(eventID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		ts := time.Now().UTC().Format(time.RFC3339)
		return tx.Bucket(processedBucket).Put([]byte(eventID), []byte(ts))
	})
}

// Count returns the number of marked ids
func (s *BoltStore) Count() (int64, error) {
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = int64(tx.Bucket(processedBucket).Stats().KeyN)
		return nil
	})
	return n, err
}

// Close closes the underlying database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
