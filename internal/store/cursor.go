package store

import "bytes"

// Cursor yields a store's entries in ascending key order. It is
// single-pass and must be released via Close on every exit path; bbolt
// cursors are invalidated once the owning transaction ends, so a Cursor
// must not outlive its Tx.
type Cursor struct {
	bucketCursor interface {
		First() (k, v []byte)
		Next() (k, v []byte)
		Seek(seek []byte) (k, v []byte)
	}
	started  bool
	closed   bool
	prefix   []byte
	seekFrom []byte
}

// Cursor opens an ascending cursor over the whole store.
func (s *Store) Cursor() *Cursor {
	return &Cursor{bucketCursor: s.bucket.Cursor()}
}

// PrefixCursor opens an ascending cursor restricted to keys sharing the
// given prefix, the access pattern for DuplicatesPrefixed stores.
func (s *Store) PrefixCursor(prefix []byte) *Cursor {
	return &Cursor{bucketCursor: s.bucket.Cursor(), prefix: prefix}
}

// RangeCursor opens an ascending cursor positioned at the first key >=
// from, with no upper bound or prefix restriction; the caller stops
// iterating once it passes its own upper bound. Used by partitioned
// entity/column scans over a contiguous TupleId range.
func (s *Store) RangeCursor(from []byte) *Cursor {
	return &Cursor{bucketCursor: s.bucket.Cursor(), seekFrom: from}
}

// Next advances the cursor and returns the next (key, value) pair, or
// ok=false once exhausted.
func (c *Cursor) Next() (key, value []byte, ok bool) {
	if c.closed {
		return nil, nil, false
	}
	var k, v []byte
	if !c.started {
		c.started = true
		switch {
		case c.prefix != nil:
			k, v = c.bucketCursor.Seek(c.prefix)
		case c.seekFrom != nil:
			k, v = c.bucketCursor.Seek(c.seekFrom)
		default:
			k, v = c.bucketCursor.First()
		}
	} else {
		k, v = c.bucketCursor.Next()
	}
	if k == nil {
		return nil, nil, false
	}
	if c.prefix != nil && !bytes.HasPrefix(k, c.prefix) {
		return nil, nil, false
	}
	return k, v, true
}

// Close releases the cursor. Safe to call multiple times.
func (c *Cursor) Close() {
	c.closed = true
}
