package lock

import (
	"twopl/pkg/primitives"
)

// LockGrantor holds the compatibility rules and performs grants on a LockTable.
type LockGrantor struct {
	lockTable *LockTable
}

// NewLockGrantor creates a new lock grantor.
func NewLockGrantor(lockTable *LockTable) *LockGrantor {
	return &LockGrantor{lockTable: lockTable}
}

// CanGrantShared determines if a shared lock can be granted on res.
// Any exclusive owner blocks it, including the requester itself.
func (lg *LockGrantor) CanGrantShared(res primitives.ResourceID) bool {
	info, exists := lg.lockTable.Get(res)
	if !exists {
		return true
	}
	_, held := info.ExclusiveOwner()
	return !held
}

// CanGrantExclusive determines if txn can take an exclusive lock on res.
// The resource must have no exclusive owner and either no shared owners or
// txn as its sole shared owner.
func (lg *LockGrantor) CanGrantExclusive(txn primitives.TransactionID, res primitives.ResourceID) bool {
	info, exists := lg.lockTable.Get(res)
	if !exists {
		return true
	}
	if _, held := info.ExclusiveOwner(); held {
		return false
	}
	return len(info.sharedOwners) == 0 || info.soleSharedOwner(txn)
}

// IsUpgrade reports whether an exclusive grant to txn on res would upgrade its shared lock.
func (lg *LockGrantor) IsUpgrade(txn primitives.TransactionID, res primitives.ResourceID) bool {
	info, exists := lg.lockTable.Get(res)
	return exists && info.soleSharedOwner(txn)
}

// GrantShared appends txn to the shared owners of res.
func (lg *LockGrantor) GrantShared(txn primitives.TransactionID, res primitives.ResourceID) {
	lg.lockTable.GetOrCreate(res).addSharedOwner(txn)
}

// GrantExclusive makes txn the exclusive owner of res. On an upgrade the
// shared entry of txn stays in place.
func (lg *LockGrantor) GrantExclusive(txn primitives.TransactionID, res primitives.ResourceID) {
	lg.lockTable.GetOrCreate(res).setExclusiveOwner(txn)
}
