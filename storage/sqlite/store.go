// Package sqlite persists the ledger tables in a single SQLite table keyed by
// (table name, key).
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"election-ledger/storage"
	"election-ledger/storage/sqlite/migrations"
)

var _ storage.Store = (*Store)(nil)

// Store persists ledger tables in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite ledger store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes transactions the same way the other backends do.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(sqlTx{ctx: ctx, tx: tx})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write transaction: %w", err)
	}
	if err := fn(sqlTx{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t sqlTx) Get(name storage.Table, key []byte) ([]byte, bool, error) {
	if !storage.KnownTable(name) {
		return nil, false, storage.ErrUnknownTable
	}
	var value []byte
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT v FROM ledger_entries WHERE tbl = ? AND k = ?`,
		string(name), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s entry: %w", name, err)
	}
	return value, true, nil
}

type entry struct {
	key   []byte
	value []byte
}

func (t sqlTx) Scan(name storage.Table, prefix []byte, fn storage.ScanFunc) error {
	if !storage.KnownTable(name) {
		return storage.ErrUnknownTable
	}
	var (
		rows *sql.Rows
		err  error
	)
	if len(prefix) == 0 {
		rows, err = t.tx.QueryContext(t.ctx,
			`SELECT k, v FROM ledger_entries WHERE tbl = ? ORDER BY k`,
			string(name),
		)
	} else {
		rows, err = t.tx.QueryContext(t.ctx,
			`SELECT k, v FROM ledger_entries WHERE tbl = ? AND k >= ? ORDER BY k`,
			string(name), prefix,
		)
	}
	if err != nil {
		return fmt.Errorf("scan %s: %w", name, err)
	}

	// Rows are drained before calling fn so the callback may issue queries on
	// the same transaction.
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.value); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan %s row: %w", name, err)
		}
		if !bytes.HasPrefix(e.key, prefix) {
			break
		}
		entries = append(entries, e)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close %s rows: %w", name, err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", name, err)
	}

	for _, e := range entries {
		if err := fn(e.key, e.value); err != nil {
			if err == storage.ErrStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t sqlTx) Put(name storage.Table, key, value []byte) error {
	if !storage.KnownTable(name) {
		return storage.ErrUnknownTable
	}
	if len(key) == 0 {
		return storage.ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO ledger_entries (tbl, k, v) VALUES (?, ?, ?)
		 ON CONFLICT (tbl, k) DO UPDATE SET v = excluded.v`,
		string(name), key, value,
	)
	if err != nil {
		return fmt.Errorf("put %s entry: %w", name, err)
	}
	return nil
}
