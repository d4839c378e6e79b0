package lock

import (
	"sync"

	"twopl/pkg/logging"
	"twopl/pkg/operation"
	"twopl/pkg/primitives"
)

// LockManager owns the lock table and is the only component that mutates it.
// Callers see two narrow entry points, acquire and release, so the mutual
// exclusion invariant is enforced in one place.
//
// Acquisition never blocks: a refused request returns false immediately and
// it is up to the caller to retry later.
type LockManager struct {
	mutex       sync.RWMutex
	lockTable   *LockTable
	lockGrantor *LockGrantor
}

// NewLockManager creates a LockManager with an empty lock table.
func NewLockManager() *LockManager {
	lockTable := NewLockTable()
	return &LockManager{
		lockTable:   lockTable,
		lockGrantor: NewLockGrantor(lockTable),
	}
}

// AcquireShared grants txn a shared lock on res unless res has an exclusive
// owner. There is no self-compatibility: a transaction holding the exclusive
// lock is refused too. A repeated grant to the same transaction adds a
// duplicate shared entry.
func (lm *LockManager) AcquireShared(txn primitives.TransactionID, res primitives.ResourceID) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	log := logging.WithLock(txn, res)
	if !lm.lockGrantor.CanGrantShared(res) {
		log.Debug("shared lock refused")
		return false
	}

	lm.lockGrantor.GrantShared(txn, res)
	log.Debug("shared lock granted")
	return true
}

// AcquireExclusive grants txn an exclusive lock on res iff no exclusive owner
// is set and the shared owners are empty or exactly {txn}. The latter is a
// lock upgrade. A refused request leaves the entry unchanged.
func (lm *LockManager) AcquireExclusive(txn primitives.TransactionID, res primitives.ResourceID) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	log := logging.WithLock(txn, res)
	if !lm.lockGrantor.CanGrantExclusive(txn, res) {
		log.Debug("exclusive lock refused")
		return false
	}

	upgrade := lm.lockGrantor.IsUpgrade(txn, res)
	lm.lockGrantor.GrantExclusive(txn, res)
	log.Debug("exclusive lock granted", "upgrade", upgrade)
	return true
}

// ReleaseAll drops every lock txn holds and returns the matching unlock
// events. Resources are visited in ascending order; within a resource the
// shared entries are released before the exclusive one.
func (lm *LockManager) ReleaseAll(txn primitives.TransactionID) []operation.Operation {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	var released []operation.Operation
	lm.lockTable.Scan(func(res primitives.ResourceID, info *LockInfo) bool {
		for range info.unlockShared(txn) {
			released = append(released, operation.NewUnlockShared(txn, res))
		}
		if info.unlockExclusive(txn) {
			released = append(released, operation.NewUnlockExclusive(txn, res))
		}
		return true
	})

	logging.WithTx(txn).Debug("released all locks", "count", len(released))
	return released
}

// Snapshot returns a copy of every locked resource in resource order.
func (lm *LockManager) Snapshot() []ResourceState {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	return lm.lockTable.Snapshot()
}

// Holders returns the lock state of res. The second result is false when res is unlocked.
func (lm *LockManager) Holders(res primitives.ResourceID) (ResourceState, bool) {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	info, ok := lm.lockTable.Get(res)
	if !ok || info.IsEmpty() {
		return ResourceState{Resource: res}, false
	}
	return newResourceState(res, info), true
}

// WaitsFor builds the wait-for graph of the given blocked operations against
// the current lock table. An edge A→B means A waits on a lock B holds.
// Reads wait on the exclusive owner; writes wait on every other holder.
// Self edges are left out since a transaction's own commit frees them.
func (lm *LockManager) WaitsFor(waiting []operation.Operation) *DependencyGraph {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	graph := NewDependencyGraph()
	for _, op := range waiting {
		info, ok := lm.lockTable.Get(op.Resource)
		if !ok {
			continue
		}

		if owner, held := info.ExclusiveOwner(); held && owner != op.Txn {
			graph.AddEdge(op.Txn, owner)
		}
		if op.Kind != operation.Write {
			continue
		}
		for _, holder := range info.sharedOwners {
			if holder != op.Txn {
				graph.AddEdge(op.Txn, holder)
			}
		}
	}
	return graph
}
