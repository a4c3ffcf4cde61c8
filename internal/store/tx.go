package store

import (
	"fmt"
	"sync"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	bolt "go.etcd.io/bbolt"
)

// Latch is the per-transaction reentrant-style mutex that serializes
// intra-transaction operations performed by helper goroutines (e.g. a
// partitioned scan's workers sharing one Tx). bbolt's *bolt.Tx is not
// safe for concurrent use by multiple goroutines, so every access to the
// underlying transaction is funneled through a Tx's Latch.
type Latch struct{ mu sync.Mutex }

// Lock acquires the latch; callers must Unlock via a deferred call on
// every exit path, including error returns.
func (l *Latch) Lock()   { l.mu.Lock() }
func (l *Latch) Unlock() { l.mu.Unlock() }

// Tx is a scoped handle over a bbolt transaction. It is created by
// Environment.Begin and must be finalized by exactly one of Commit or
// Rollback on every exit path.
type Tx struct {
	env      *Environment
	bolt     *bolt.Tx
	writable bool
	latch    Latch
	done     bool
}

// Begin starts a new transaction. Writable transactions serialize with
// all other writers (bbolt's native guarantee); read transactions run
// concurrently with writers via MVCC snapshots.
func (e *Environment) Begin(writable bool) (*Tx, error) {
	btx, err := e.db.Begin(writable)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindIOOther, e.path, err)
	}
	return &Tx{env: e, bolt: btx, writable: writable}, nil
}

// Commit finalizes a writable transaction, making its writes durable and
// visible to subsequently begun transactions.
func (t *Tx) Commit() error {
	t.latch.Lock()
	defer t.latch.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	if err := t.bolt.Commit(); err != nil {
		return dberr.Wrap(dberr.KindAborted, t.env.path, err)
	}
	return nil
}

// Rollback discards a transaction's writes. Safe to call on an
// already-committed transaction (no-op), so defer'd cleanup never panics.
func (t *Tx) Rollback() error {
	t.latch.Lock()
	defer t.latch.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	if err := t.bolt.Rollback(); err != nil {
		return dberr.Wrap(dberr.KindAborted, t.env.path, err)
	}
	return nil
}

// Writable reports whether this transaction can mutate stores.
func (t *Tx) Writable() bool { return t.writable }

// Store is a handle to one named key→value store opened within a
// transaction, scoped to that transaction's lifetime.
type Store struct {
	tx     *Tx
	bucket *bolt.Bucket
	name   string
	mode   DupMode
}

// OpenStore opens (creating if necessary and the transaction is
// writable) the named store under mode. Reopening an existing store
// under a different mode fails with VersionMismatch.
func (t *Tx) OpenStore(name string, mode DupMode) (*Store, error) {
	if err := t.env.recordStoreMode(name, mode); err != nil {
		return nil, err
	}
	bucketName := []byte(name)
	var b *bolt.Bucket
	if t.writable {
		var err error
		b, err = t.bolt.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return nil, dberr.Wrap(dberr.KindIOOther, name, err)
		}
	} else {
		b = t.bolt.Bucket(bucketName)
		if b == nil {
			return nil, dberr.New(dberr.KindStoreMissing, name, "store not found in read-only transaction")
		}
	}
	return &Store{tx: t, bucket: b, name: name, mode: mode}, nil
}

// DropStore deletes a named store entirely. The transaction must be writable.
func (t *Tx) DropStore(name string) error {
	if !t.writable {
		return dberr.New(dberr.KindClosedDBO, name, "cannot drop store in read-only transaction")
	}
	if err := t.bolt.DeleteBucket([]byte(name)); err != nil && err != bolt.ErrBucketNotFound {
		return dberr.Wrap(dberr.KindIOOther, name, err)
	}
	t.env.mu.Lock()
	delete(t.env.stores, name)
	t.env.mu.Unlock()
	return nil
}

// Get retrieves the value for key, or nil if absent. Only meaningful for
// Unique/UniquePrefixed stores; for DuplicatesPrefixed stores use PrefixCursor.
func (s *Store) Get(key []byte) ([]byte, error) {
	v := s.bucket.Get(key)
	if v == nil {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put writes key→value. In DuplicatesPrefixed mode, key is treated as a
// prefix and an internal monotonically increasing suffix is appended so
// multiple values can coexist under the same logical key; the full
// stored key is returned.
func (s *Store) Put(key, value []byte) ([]byte, error) {
	if !s.tx.writable {
		return nil, dberr.New(dberr.KindClosedDBO, s.name, "write on read-only transaction")
	}
	full := key
	if s.mode == DuplicatesPrefixed {
		seq, _ := s.bucket.NextSequence()
		full = appendSeqSuffix(key, seq)
	}
	if err := s.bucket.Put(full, value); err != nil {
		return nil, dberr.Wrap(dberr.KindIOOther, s.name, err)
	}
	return full, nil
}

// Delete removes key (the exact stored key, including any duplicate suffix).
func (s *Store) Delete(key []byte) error {
	if !s.tx.writable {
		return dberr.New(dberr.KindClosedDBO, s.name, "delete on read-only transaction")
	}
	if err := s.bucket.Delete(key); err != nil {
		return dberr.Wrap(dberr.KindIOOther, s.name, err)
	}
	return nil
}

// Count returns the number of entries currently in the store.
func (s *Store) Count() int {
	n := 0
	c := s.bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func appendSeqSuffix(prefix []byte, seq uint64) []byte {
	suffix := fmt.Sprintf("%020d", seq)
	out := make([]byte, 0, len(prefix)+len(suffix))
	out = append(out, prefix...)
	out = append(out, suffix...)
	return out
}
