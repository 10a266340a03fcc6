// Package bolt keeps artifacts in a local bbolt database file.
package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/holysaw/holysaw/store"
	bolt "go.etcd.io/bbolt"
)

const bucketArtifacts = "artifacts"

// Store implements store.Store on top of a bbolt database.
type Store struct {
	db *bolt.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cannot open artifact database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketArtifacts))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize artifact database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(_ context.Context, key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketArtifacts)).Put([]byte(key), data)
	})
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var ret []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketArtifacts)).Get([]byte(key))
		if v == nil {
			return store.ErrNotFound
		}
		// v is only valid during the transaction
		ret = append([]byte(nil), v...)
		return nil
	})
	return ret, err
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketArtifacts)).Delete([]byte(key))
	})
}

func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	var ret []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketArtifacts)).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && hasPrefix(k, p); k, _ = c.Next() {
			ret = append(ret, string(k))
		}
		return nil
	})
	return ret, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}
