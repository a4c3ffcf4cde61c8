package index

import (
	"sync"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
)

// LockMode is the logical lock strength requested on an object.
type LockMode int

const (
	NoLock LockMode = iota
	Shared
	Exclusive
)

func compatible(a, b LockMode) bool {
	if a == NoLock || b == NoLock {
		return true
	}
	return a == Shared && b == Shared
}

// TxnID identifies the transaction requesting a lock, for waits-for
// graph bookkeeping.
type TxnID int64

type objectLock struct {
	mode    LockMode
	holders map[TxnID]bool
	cond    *sync.Cond
}

// LockManager mediates logical locks on named objects (entities,
// indexes) with modes {NO_LOCK, SHARED, EXCLUSIVE}. A waits-for graph
// detects deadlocks before a requester blocks; a transaction whose
// request would close a cycle is aborted immediately with
// dberr.KindDeadlock rather than being queued.
type LockManager struct {
	mu       sync.Mutex
	objects  map[string]*objectLock
	waitsFor map[TxnID]map[TxnID]bool // A -> set of B's A is waiting on
}

// NewLockManager constructs an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{
		objects:  make(map[string]*objectLock),
		waitsFor: make(map[TxnID]map[TxnID]bool),
	}
}

func (m *LockManager) objectLocked(object string) *objectLock {
	o, ok := m.objects[object]
	if !ok {
		o = &objectLock{mode: NoLock, holders: make(map[TxnID]bool)}
		o.cond = sync.NewCond(&m.mu)
		m.objects[object] = o
	}
	return o
}

// hasCycle reports whether starting from `from` the waits-for graph
// reaches `to`, i.e. granting the new edge from->to would close a cycle.
func (m *LockManager) hasCycle(from, to TxnID) bool {
	visited := map[TxnID]bool{}
	var visit func(TxnID) bool
	visit = func(n TxnID) bool {
		if n == from {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for next := range m.waitsFor[n] {
			if visit(next) {
				return true
			}
		}
		return false
	}
	return visit(to)
}

// Acquire blocks until txn holds object under mode, or returns
// dberr.KindDeadlock immediately if doing so would close a cycle in the
// waits-for graph. Lock upgrades (SHARED->EXCLUSIVE) are handled
// atomically: a txn already holding SHARED that requests EXCLUSIVE
// waits only on other holders, not on itself.
func (m *LockManager) Acquire(txn TxnID, object string, mode LockMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.objectLocked(object)
	for {
		blockers := m.blockingHolders(o, txn, mode)
		if len(blockers) == 0 {
			o.holders[txn] = true
			if mode == Exclusive || o.mode == NoLock {
				o.mode = mode
			} else if o.mode == Shared && mode == Shared {
				o.mode = Shared
			}
			delete(m.waitsFor, txn)
			return nil
		}

		if m.waitsFor[txn] == nil {
			m.waitsFor[txn] = make(map[TxnID]bool)
		}
		for _, b := range blockers {
			if m.hasCycle(txn, b) {
				delete(m.waitsFor, txn)
				return dberr.New(dberr.KindDeadlock, object, "lock request would deadlock")
			}
			m.waitsFor[txn][b] = true
		}
		o.cond.Wait()
	}
}

// blockingHolders returns the holders of object whose held mode
// conflicts with the requested mode, excluding txn itself (so a txn
// upgrading its own shared hold doesn't block on itself). Every holder
// holds o.mode: an Exclusive object has exactly one holder, a Shared
// one only shared holders — so a request blocks on another holder only
// when o.mode is incompatible with the requested mode.
func (m *LockManager) blockingHolders(o *objectLock, txn TxnID, mode LockMode) []TxnID {
	if compatible(o.mode, mode) {
		return nil
	}
	var blockers []TxnID
	for h := range o.holders {
		if h == txn {
			continue
		}
		blockers = append(blockers, h)
	}
	return blockers
}

// Release drops txn's hold on object, waking any waiters.
func (m *LockManager) Release(txn TxnID, object string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[object]
	if !ok {
		return
	}
	delete(o.holders, txn)
	if len(o.holders) == 0 {
		o.mode = NoLock
	}
	delete(m.waitsFor, txn)
	o.cond.Broadcast()
}

// ReleaseAll drops every lock held by txn, used when a transaction
// aborts or commits.
func (m *LockManager) ReleaseAll(txn TxnID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.objects {
		if o.holders[txn] {
			delete(o.holders, txn)
			if len(o.holders) == 0 {
				o.mode = NoLock
			}
			o.cond.Broadcast()
		}
	}
	delete(m.waitsFor, txn)
}
