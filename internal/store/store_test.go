package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEnv(t *testing.T) *Environment {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	env, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestPutGetRoundTrip(t *testing.T) {
	env := openTestEnv(t)

	tx, err := env.Begin(true)
	require.NoError(t, err)
	s, err := tx.OpenStore("widgets", Unique)
	require.NoError(t, err)
	_, err = s.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = env.Begin(false)
	require.NoError(t, err)
	defer tx.Rollback()
	s, err = tx.OpenStore("widgets", Unique)
	require.NoError(t, err)
	v, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestReopenStoreUnderDifferentModeFails(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	_, err = tx.OpenStore("widgets", Unique)
	require.NoError(t, err)
	_, err = tx.OpenStore("widgets", DuplicatesPrefixed)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
}

func TestDuplicatesPrefixedStoreHoldsManyValuesPerPrefix(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	s, err := tx.OpenStore("dup", DuplicatesPrefixed)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.Put([]byte("prefix:"), []byte{byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	tx, err = env.Begin(false)
	require.NoError(t, err)
	defer tx.Rollback()
	s, err = tx.OpenStore("dup", DuplicatesPrefixed)
	require.NoError(t, err)

	c := s.PrefixCursor([]byte("prefix:"))
	defer c.Close()
	count := 0
	for {
		_, _, ok := c.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 5, count)
}

func TestCursorAscendingOrder(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	s, err := tx.OpenStore("ordered", Unique)
	require.NoError(t, err)
	for _, k := range []string{"b", "a", "c"} {
		_, err := s.Put([]byte(k), []byte(k))
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	tx, err = env.Begin(false)
	require.NoError(t, err)
	defer tx.Rollback()
	s, err = tx.OpenStore("ordered", Unique)
	require.NoError(t, err)

	c := s.Cursor()
	defer c.Close()
	var keys []string
	for {
		k, _, ok := c.Next()
		if !ok {
			break
		}
		keys = append(keys, string(k))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestSequenceNeverDecreasesOrReuses(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	seq, err := tx.Sequences()
	require.NoError(t, err)
	require.NoError(t, seq.Init("orders"))

	var last int64
	for i := 0; i < 3; i++ {
		v, err := seq.Next("orders")
		require.NoError(t, err)
		assert.Greater(t, v, last)
		last = v
	}
	require.NoError(t, tx.Commit())
}

func TestDropStoreRemovesBucket(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	s, err := tx.OpenStore("temp", Unique)
	require.NoError(t, err)
	_, err = s.Put([]byte("k"), []byte("v"))
	require.NoError(t, err)
	require.NoError(t, tx.DropStore("temp"))
	require.NoError(t, tx.Commit())

	tx, err = env.Begin(false)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.OpenStore("temp", Unique)
	require.Error(t, err)
}
