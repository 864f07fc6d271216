package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"election-ledger/storage"
	"election-ledger/storage/storagetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTempStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, func(w storage.Writer) error {
		return w.Put(storage.TableVoters, []byte("v"), []byte{1})
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.sqlDB.QueryRow("PRAGMA user_version").Scan(&version))
	require.Equal(t, 1, version)

	require.NoError(t, s.View(ctx, func(r storage.Reader) error {
		_, ok, err := r.Get(storage.TableVoters, []byte("v"))
		require.True(t, ok)
		return err
	}))
}

func TestUpSection(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	require.Equal(t, "\nCREATE TABLE a (x INT);\n", upSection(content))
	require.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}

func TestMigrationVersion(t *testing.T) {
	v, err := migrationVersion("0001_ledger_entries.sql")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = migrationVersion("ledger_entries.sql")
	require.Error(t, err)
	_, err = migrationVersion("0000_init.sql")
	require.Error(t, err)
}
