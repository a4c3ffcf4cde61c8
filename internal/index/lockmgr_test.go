package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
)

func TestLockManagerSharedCompatible(t *testing.T) {
	m := NewLockManager()
	require.NoError(t, m.Acquire(1, "obj", Shared))
	require.NoError(t, m.Acquire(2, "obj", Shared))
	m.Release(1, "obj")
	m.Release(2, "obj")
}

func TestLockManagerExclusiveBlocksThenReleases(t *testing.T) {
	m := NewLockManager()
	require.NoError(t, m.Acquire(1, "obj", Exclusive))

	done := make(chan error, 1)
	go func() { done <- m.Acquire(2, "obj", Exclusive) }()

	select {
	case <-done:
		t.Fatal("txn 2 should not have acquired while txn 1 holds exclusive")
	case <-time.After(50 * time.Millisecond):
	}

	m.Release(1, "obj")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("txn 2 never acquired after release")
	}
	m.Release(2, "obj")
}

func TestLockManagerDeadlockDetected(t *testing.T) {
	m := NewLockManager()
	require.NoError(t, m.Acquire(1, "a", Exclusive))
	require.NoError(t, m.Acquire(2, "b", Exclusive))

	go func() { _ = m.Acquire(1, "b", Exclusive) }()
	time.Sleep(20 * time.Millisecond)

	err := m.Acquire(2, "a", Exclusive)
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindDeadlock))

	m.ReleaseAll(1)
	m.ReleaseAll(2)
}

func TestLockManagerUpgrade(t *testing.T) {
	m := NewLockManager()
	require.NoError(t, m.Acquire(1, "obj", Shared))
	require.NoError(t, m.Acquire(1, "obj", Exclusive))
	m.ReleaseAll(1)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func(args interface{}) (Index, error) { return nil, nil })
	assert.Contains(t, r.Kinds(), "fake")
	_, err := r.New("fake", nil)
	require.NoError(t, err)
	_, err = r.New("missing", nil)
	require.Error(t, err)
}
