package postgres

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"election-ledger/storage"
	"election-ledger/storage/storagetest"
)

// Set ELECTIONS_TEST_POSTGRES_DSN to run against a disposable database; the
// entries table is emptied before every case.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("ELECTIONS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ELECTIONS_TEST_POSTGRES_DSN not set")
	}
	s, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, s.db.Exec("DELETE FROM ledger_entries").Error)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTestStore(t)
	})
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestScanQueryIsBoundedByPrefix(t *testing.T) {
	db, err := gorm.Open(postgres.Open("host=localhost user=ledger dbname=ledger sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	prefix := storage.Key().String("org").Uint64(0).Bytes()
	var rows []entryModel
	stmt := scanQuery(db, storage.TableTallies, prefix).Find(&rows).Statement

	require.Contains(t, stmt.SQL.String(), "k >= $2")
	require.Contains(t, stmt.SQL.String(), "k < $3")
	require.Contains(t, stmt.SQL.String(), "ORDER BY k")
	require.Equal(t, []any{string(storage.TableTallies), prefix, storage.PrefixEnd(prefix)}, stmt.Vars)

	stmt = scanQuery(db.Session(&gorm.Session{NewDB: true}), storage.TableVoters, nil).Find(&rows).Statement
	require.NotContains(t, stmt.SQL.String(), "k <")
	require.Equal(t, []any{string(storage.TableVoters)}, stmt.Vars)
}
