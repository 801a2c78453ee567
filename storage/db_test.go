package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	_, err = db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("boom")
	err = db.Update(func(tx Tx) error {
		require.NoError(t, tx.Put([]byte("b"), []byte("2")))
		require.NoError(t, tx.Delete([]byte("a")))
		has, err := tx.Has([]byte("a"))
		require.NoError(t, err)
		require.False(t, has)
		got, err := tx.Get([]byte("b"))
		require.NoError(t, err)
		require.Equal(t, []byte("2"), got)
		return boom
	})
	require.ErrorIs(t, err, boom)

	has, err := db.Has([]byte("b"))
	require.NoError(t, err)
	require.False(t, has, "aborted write must not be visible")
	value, err = db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value, "aborted delete must not be applied")

	err = db.Update(func(tx Tx) error {
		if err := tx.Put([]byte("b"), []byte("2")); err != nil {
			return err
		}
		return tx.Delete([]byte("a"))
	})
	require.NoError(t, err)
	value, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
	_, err = db.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDBUpdateIsAtomic(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)
	exerciseDatabase(t, db)
	require.Equal(t, 1, db.Len())
}

func TestLevelDBUpdateIsAtomic(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	exerciseDatabase(t, db)
}

func TestBoltDBUpdateIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := NewBoltDB(path)
	require.NoError(t, err)
	exerciseDatabase(t, db)
	db.Close()

	reopened, err := NewBoltDB(path)
	require.NoError(t, err)
	t.Cleanup(reopened.Close)
	value, err := reopened.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	db, err := Open("bolt", filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	require.IsType(t, &BoltDB{}, db)
	db.Close()

	db, err = Open("", filepath.Join(dir, "level"))
	require.NoError(t, err)
	require.IsType(t, &LevelDB{}, db)
	db.Close()

	_, err = Open("rocksdb", filepath.Join(dir, "x"))
	require.Error(t, err)
}

func TestMemDBGetReturnsCopies(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("k"), []byte("value")))
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	got[0] = 'X'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), again)
}
