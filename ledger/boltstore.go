package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

// BoltStore persists ledger state in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// View runs fn in a read-only transaction.
func (s *BoltStore) View(fn func(tx Tx) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

// Update runs fn in a read-write transaction. bbolt rolls back if fn fails.
func (s *BoltStore) Update(fn func(tx Tx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

type boltTx struct {
	tx *bbolt.Tx
}

func (t boltTx) Get(bucket string, key []byte) []byte {
	b := t.tx.Bucket([]byte(bucket))
	if b == nil {
		return nil
	}
	v := b.Get(key)
	if v == nil {
		return nil
	}
	// bbolt values are only valid for the life of the transaction.
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (t boltTx) Put(bucket string, key, value []byte) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	b := t.tx.Bucket([]byte(bucket))
	if b == nil {
		return fmt.Errorf("boltstore: bucket %q not found", bucket)
	}
	if err := b.Put(key, value); err != nil {
		return fmt.Errorf("boltstore: put %q: %w", bucket, err)
	}
	return nil
}

func (t boltTx) ForEach(bucket string, fn func(k, v []byte) error) error {
	b := t.tx.Bucket([]byte(bucket))
	if b == nil {
		return nil
	}
	return b.ForEach(fn)
}
