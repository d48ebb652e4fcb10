package persistence

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var guardBucket = []byte("migrations")

// BoltGuardStore records which one-shot state migrations have run, in a
// local bbolt file. Kept separate from Postgres so a fresh node can
// decide migration state before any database connection exists.
type BoltGuardStore struct {
	db *bolt.DB
}

// OpenGuardStore opens (or creates) the guard file at path.
func OpenGuardStore(path string) (*BoltGuardStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open guard store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(guardBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init guard bucket: %w", err)
	}
	return &BoltGuardStore{db: db}, nil
}

func (g *BoltGuardStore) HasRun(name []byte) (bool, error) {
	var run bool
	err := g.db.View(func(tx *bolt.Tx) error {
		run = tx.Bucket(guardBucket).Get(name) != nil
		return nil
	})
	return run, err
}

func (g *BoltGuardStore) MarkRun(name []byte) error {
	return g.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(guardBucket).Put(name, []byte{1})
	})
}

func (g *BoltGuardStore) Close() error {
	return g.db.Close()
}
