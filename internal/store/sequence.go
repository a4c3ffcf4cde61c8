package store

import (
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// sequenceStoreName is the dedicated store backing every named sequence
// counter (e.g. one TupleId sequence per entity).
const sequenceStoreName = "~sequences"

// SequenceStore exposes atomic counters scoped to a transaction. Values
// are persisted as 8-byte big-endian signed longs, per the external
// store byte contract, and never decrease or get reused.
type SequenceStore struct {
	store *Store
}

// Sequences opens the environment-wide sequence store within tx.
func (t *Tx) Sequences() (*SequenceStore, error) {
	s, err := t.OpenStore(sequenceStoreName, Unique)
	if err != nil {
		return nil, err
	}
	return &SequenceStore{store: s}, nil
}

// Init creates name's counter at zero if absent. No-op if it already exists.
func (s *SequenceStore) Init(name string) error {
	existing, err := s.store.Get([]byte(name))
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = s.store.Put([]byte(name), types.EncodeSequence(0))
	return err
}

// Next atomically advances name's counter and returns the new value
// (the allocated TupleId, or other sequence value).
func (s *SequenceStore) Next(name string) (int64, error) {
	cur, err := s.store.Get([]byte(name))
	if err != nil {
		return 0, err
	}
	var next int64
	if cur == nil {
		next = 1
	} else {
		next = types.DecodeSequence(cur) + 1
	}
	if _, err := s.store.Put([]byte(name), types.EncodeSequence(next)); err != nil {
		return 0, err
	}
	return next, nil
}

// Current returns name's current value without advancing it.
func (s *SequenceStore) Current(name string) (int64, error) {
	cur, err := s.store.Get([]byte(name))
	if err != nil {
		return 0, err
	}
	if cur == nil {
		return 0, dberr.New(dberr.KindStoreMissing, name, "sequence not initialized")
	}
	return types.DecodeSequence(cur), nil
}

// Drop removes name's counter entirely (used when dropping an entity).
func (s *SequenceStore) Drop(name string) error {
	return s.store.Delete([]byte(name))
}
