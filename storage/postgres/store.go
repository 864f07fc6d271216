// Package postgres persists the ledger tables in PostgreSQL through gorm,
// one row per (table, key).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"election-ledger/storage"
)

var _ storage.Store = (*Store)(nil)

type entryModel struct {
	Table string `gorm:"column:tbl;primaryKey"`
	Key   []byte `gorm:"column:k;primaryKey"`
	Value []byte `gorm:"column:v"`
}

func (entryModel) TableName() string {
	return "ledger_entries"
}

type Store struct {
	db *gorm.DB
}

// Open connects to dsn and creates the entries table when missing.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.AutoMigrate(&entryModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate ledger entries: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTx{tx: tx})
	}, &sql.TxOptions{ReadOnly: true})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTx{tx: tx})
	})
}

type gormTx struct {
	tx *gorm.DB
}

func (t gormTx) Get(name storage.Table, key []byte) ([]byte, bool, error) {
	if !storage.KnownTable(name) {
		return nil, false, storage.ErrUnknownTable
	}
	var row entryModel
	err := t.tx.Where("tbl = ? AND k = ?", string(name), key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s entry: %w", name, err)
	}
	return row.Value, true, nil
}

func (t gormTx) Scan(name storage.Table, prefix []byte, fn storage.ScanFunc) error {
	if !storage.KnownTable(name) {
		return storage.ErrUnknownTable
	}
	var rows []entryModel
	if err := scanQuery(t.tx, name, prefix).Find(&rows).Error; err != nil {
		return fmt.Errorf("scan %s: %w", name, err)
	}

	for _, row := range rows {
		if err := fn(row.Key, row.Value); err != nil {
			if err == storage.ErrStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

// scanQuery selects the keys of name starting with prefix, in key order.
func scanQuery(tx *gorm.DB, name storage.Table, prefix []byte) *gorm.DB {
	query := tx.Where("tbl = ?", string(name))
	if len(prefix) > 0 {
		query = query.Where("k >= ?", prefix)
	}
	if end := storage.PrefixEnd(prefix); end != nil {
		query = query.Where("k < ?", end)
	}
	return query.Order("k")
}

func (t gormTx) Put(name storage.Table, key, value []byte) error {
	if !storage.KnownTable(name) {
		return storage.ErrUnknownTable
	}
	if len(key) == 0 {
		return storage.ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}
	row := entryModel{Table: string(name), Key: key, Value: value}
	err := t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tbl"}, {Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("put %s entry: %w", name, err)
	}
	return nil
}
