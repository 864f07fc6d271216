// Package bolt persists the ledger tables in a bbolt file, one bucket per
// table.
package bolt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"election-ledger/storage"
)

var _ storage.Store = (*Store)(nil)

const openTimeout = 5 * time.Second

type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database file at path and makes sure
// every table bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := initDB(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt db: %w", err)
	}
	return &Store{db: db}, nil
}

func initDB(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, t := range storage.Tables {
			if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(boltTx{tx: tx})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (t boltTx) bucket(name storage.Table) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, storage.ErrUnknownTable
	}
	return b, nil
}

func (t boltTx) Get(name storage.Table, key []byte) ([]byte, bool, error) {
	b, err := t.bucket(name)
	if err != nil {
		return nil, false, err
	}
	if len(key) == 0 {
		return nil, false, nil
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t boltTx) Scan(name storage.Table, prefix []byte, fn storage.ScanFunc) error {
	b, err := t.bucket(name)
	if err != nil {
		return err
	}
	c := b.Cursor()
	var k, v []byte
	if len(prefix) == 0 {
		k, v = c.First()
	} else {
		k, v = c.Seek(prefix)
	}
	for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			if err == storage.ErrStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t boltTx) Put(name storage.Table, key, value []byte) error {
	b, err := t.bucket(name)
	if err != nil {
		return err
	}
	if len(key) == 0 {
		return storage.ErrEmptyKey
	}
	// bbolt keeps a reference to value until commit.
	stored := make([]byte, len(value))
	copy(stored, value)
	return b.Put(key, stored)
}
