// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"election-ledger/storage"
)

// Run exercises open against the storage.Store contract. open must return a
// fresh, empty store for every call.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		err := s.View(context.Background(), func(r storage.Reader) error {
			_, ok, err := r.Get(storage.TableOrganizations, []byte("nobody"))
			require.NoError(t, err)
			require.False(t, ok)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("put then get", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(w storage.Writer) error {
			return w.Put(storage.TableOrganizations, []byte("org"), []byte("v1"))
		}))
		require.NoError(t, s.Update(ctx, func(w storage.Writer) error {
			return w.Put(storage.TableOrganizations, []byte("org"), []byte("v2"))
		}))
		require.NoError(t, s.View(ctx, func(r storage.Reader) error {
			v, ok, err := r.Get(storage.TableOrganizations, []byte("org"))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("v2"), v)
			return nil
		}))
	})

	t.Run("reads own writes", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Update(context.Background(), func(w storage.Writer) error {
			require.NoError(t, w.Put(storage.TableTallies, []byte("a"), []byte{1}))
			v, ok, err := w.Get(storage.TableTallies, []byte("a"))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte{1}, v)
			return nil
		}))
	})

	t.Run("failed update is rolled back", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		boom := errors.New("boom")
		err := s.Update(ctx, func(w storage.Writer) error {
			require.NoError(t, w.Put(storage.TableVoters, []byte("voter"), []byte{1}))
			require.NoError(t, w.Put(storage.TableTallies, []byte("tally"), []byte{1}))
			return boom
		})
		require.ErrorIs(t, err, boom)

		require.NoError(t, s.View(ctx, func(r storage.Reader) error {
			_, ok, err := r.Get(storage.TableVoters, []byte("voter"))
			require.NoError(t, err)
			require.False(t, ok)
			_, ok, err = r.Get(storage.TableTallies, []byte("tally"))
			require.NoError(t, err)
			require.False(t, ok)
			return nil
		}))
	})

	t.Run("scan is ordered and prefix bound", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(w storage.Writer) error {
			for _, k := range []string{"b/2", "a/1", "b/1", "c/1", "b/10"} {
				if err := w.Put(storage.TableElections, []byte(k), []byte(k)); err != nil {
					return err
				}
			}
			return nil
		}))

		var got []string
		require.NoError(t, s.View(ctx, func(r storage.Reader) error {
			return r.Scan(storage.TableElections, []byte("b/"), func(k, v []byte) error {
				require.Equal(t, k, v)
				got = append(got, string(k))
				return nil
			})
		}))
		require.Equal(t, []string{"b/1", "b/10", "b/2"}, got)

		var all int
		require.NoError(t, s.View(ctx, func(r storage.Reader) error {
			return r.Scan(storage.TableElections, nil, func(_, _ []byte) error {
				all++
				return nil
			})
		}))
		require.Equal(t, 5, all)
	})

	t.Run("scan bounds prefixes ending in 0xff", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		keys := [][]byte{{1, 0xff}, {1, 0xff, 0}, {2}, {2, 0}, {0xff, 0xff, 1}}
		require.NoError(t, s.Update(ctx, func(w storage.Writer) error {
			for _, k := range keys {
				if err := w.Put(storage.TableTallies, k, []byte{1}); err != nil {
					return err
				}
			}
			return nil
		}))

		count := func(prefix []byte) int {
			var n int
			require.NoError(t, s.View(ctx, func(r storage.Reader) error {
				return r.Scan(storage.TableTallies, prefix, func(_, _ []byte) error {
					n++
					return nil
				})
			}))
			return n
		}
		require.Equal(t, 2, count([]byte{1, 0xff}))
		require.Equal(t, 2, count([]byte{2}))
		require.Equal(t, 1, count([]byte{0xff, 0xff}))
	})

	t.Run("scan stops early", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(w storage.Writer) error {
			for _, k := range []string{"k1", "k2", "k3"} {
				if err := w.Put(storage.TableBlocks, []byte(k), nil); err != nil {
					return err
				}
			}
			return nil
		}))

		var seen int
		require.NoError(t, s.View(ctx, func(r storage.Reader) error {
			return r.Scan(storage.TableBlocks, []byte("k"), func(_, _ []byte) error {
				seen++
				if seen == 2 {
					return storage.ErrStopScan
				}
				return nil
			})
		}))
		require.Equal(t, 2, seen)
	})

	t.Run("scan propagates callback errors", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(w storage.Writer) error {
			return w.Put(storage.TableMeta, []byte("owner"), []byte("x"))
		}))
		boom := errors.New("boom")
		err := s.View(ctx, func(r storage.Reader) error {
			return r.Scan(storage.TableMeta, nil, func(_, _ []byte) error { return boom })
		})
		require.ErrorIs(t, err, boom)
	})

	t.Run("rejects unknown table and empty key", func(t *testing.T) {
		s := open(t)
		err := s.Update(context.Background(), func(w storage.Writer) error {
			return w.Put(storage.Table("nope"), []byte("k"), []byte("v"))
		})
		require.ErrorIs(t, err, storage.ErrUnknownTable)

		err = s.Update(context.Background(), func(w storage.Writer) error {
			return w.Put(storage.TableMeta, nil, []byte("v"))
		})
		require.ErrorIs(t, err, storage.ErrEmptyKey)
	})

	t.Run("canceled context", func(t *testing.T) {
		s := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := s.Update(ctx, func(storage.Writer) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
		err = s.View(ctx, func(storage.Reader) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})
}
