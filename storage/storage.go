// Package storage defines the keyed tables the election ledger is persisted in
// and the transactional contract every backend implements.
package storage

import (
	"context"
	"errors"
)

// Table names one logical keyed table.
type Table string

const (
	TableMeta          Table = "meta"
	TableOrganizations Table = "organizations"
	TableElections     Table = "elections"
	TableTallies       Table = "tallies"
	TableVoters        Table = "voters"
	TableBlocks        Table = "blocks"
)

// Tables lists every table a backend must provide.
var Tables = []Table{
	TableMeta,
	TableOrganizations,
	TableElections,
	TableTallies,
	TableVoters,
	TableBlocks,
}

var (
	ErrClosed       = errors.New("storage: store is closed")
	ErrUnknownTable = errors.New("storage: unknown table")
	ErrEmptyKey     = errors.New("storage: empty key")

	// ErrStopScan may be returned from a scan callback to end the scan early
	// without failing it.
	ErrStopScan = errors.New("storage: stop scan")
)

// ScanFunc receives one entry of a prefix scan. Key and value are only valid
// until the callback returns.
type ScanFunc func(key, value []byte) error

// Reader is the read side of a transaction.
type Reader interface {
	// Get returns the value stored under key, and whether it was present.
	Get(table Table, key []byte) ([]byte, bool, error)
	// Scan visits every entry whose key starts with prefix in ascending key
	// order.
	Scan(table Table, prefix []byte, fn ScanFunc) error
}

// Writer is a read-write transaction. Writes become visible to other
// transactions only when the enclosing Update returns nil.
type Writer interface {
	Reader
	Put(table Table, key, value []byte) error
}

// Store is a transactional keyed store.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Reader) error) error
	// Update runs fn in a read-write transaction. If fn returns an error no
	// write performed inside it is persisted.
	Update(ctx context.Context, fn func(Writer) error) error
	Close() error
}

// KnownTable reports whether t is one of Tables.
func KnownTable(t Table) bool {
	for _, known := range Tables {
		if known == t {
			return true
		}
	}
	return false
}
