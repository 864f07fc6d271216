// Package mem implements an in-memory storage.Store. Update transactions stage
// their writes and apply them only when the callback succeeds.
package mem

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"election-ledger/storage"
)

var _ storage.Store = (*Store)(nil)

type table map[string][]byte

// Store keeps every table in process memory.
type Store struct {
	mu     sync.RWMutex
	tables map[storage.Table]table
	closed bool
}

func New() *Store {
	tables := make(map[storage.Table]table, len(storage.Tables))
	for _, t := range storage.Tables {
		tables[t] = make(table)
	}
	return &Store{tables: tables}
}

func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrClosed
	}
	return fn(&tx{base: s.tables})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	t := &tx{base: s.tables, pending: make(map[storage.Table]table)}
	if err := fn(t); err != nil {
		return err
	}
	for name, writes := range t.pending {
		for k, v := range writes {
			s.tables[name][k] = v
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type tx struct {
	base    map[storage.Table]table
	pending map[storage.Table]table
}

func (t *tx) Get(name storage.Table, key []byte) ([]byte, bool, error) {
	base, ok := t.base[name]
	if !ok {
		return nil, false, storage.ErrUnknownTable
	}
	if v, ok := t.pending[name][string(key)]; ok {
		return clone(v), true, nil
	}
	v, ok := base[string(key)]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (t *tx) Scan(name storage.Table, prefix []byte, fn storage.ScanFunc) error {
	base, ok := t.base[name]
	if !ok {
		return storage.ErrUnknownTable
	}

	merged := make(map[string][]byte)
	for k, v := range base {
		if bytes.HasPrefix([]byte(k), prefix) {
			merged[k] = v
		}
	}
	for k, v := range t.pending[name] {
		if bytes.HasPrefix([]byte(k), prefix) {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			if err == storage.ErrStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t *tx) Put(name storage.Table, key, value []byte) error {
	if _, ok := t.base[name]; !ok {
		return storage.ErrUnknownTable
	}
	if len(key) == 0 {
		return storage.ErrEmptyKey
	}
	writes, ok := t.pending[name]
	if !ok {
		writes = make(table)
		t.pending[name] = writes
	}
	writes[string(key)] = clone(value)
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
