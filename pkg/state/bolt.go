package state

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/go-drift/declui/pkg/errors"
)

const bucketState = "state"

// BoltStore is a SnapshotStore backed by a bbolt database. Each leaf cell is
// one key in the "state" bucket.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.New(errors.KindStateManagement, "state.OpenBoltStore", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketState))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.New(errors.KindStateManagement, "state.OpenBoltStore", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// WriteSnapshot replaces the stored snapshot.
func (s *BoltStore) WriteSnapshot(snap Snapshot) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketState)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket([]byte(bucketState))
		if err != nil {
			return err
		}
		for key, raw := range snap {
			if err := b.Put([]byte(key), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(errors.KindStateManagement, "state.Save", err)
	}
	return nil
}

// ReadSnapshot returns the stored snapshot.
func (s *BoltStore) ReadSnapshot() (Snapshot, error) {
	snap := make(Snapshot)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketState))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			snap[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, errors.New(errors.KindStateManagement, "state.Load", err)
	}
	return snap, nil
}
