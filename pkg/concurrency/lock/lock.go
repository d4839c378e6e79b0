package lock

import (
	"slices"

	"twopl/pkg/primitives"
)

type LockType int

const (
	SharedLock LockType = iota
	ExclusiveLock
)

func (lt LockType) String() string {
	if lt == ExclusiveLock {
		return "exclusive"
	}
	return "shared"
}

// LockInfo is the lock state of a single resource.
//
// sharedOwners is kept as a list rather than a set: a transaction that
// requests a shared lock it already holds gets a second entry, and each entry
// produces its own release event. A resource whose owners are all cleared is
// unlocked even if its LockInfo stays in the table.
type LockInfo struct {
	sharedOwners   []primitives.TransactionID
	exclusiveOwner primitives.TransactionID
	hasExclusive   bool
}

// SharedOwners returns a copy of the shared owner list in grant order.
func (li *LockInfo) SharedOwners() []primitives.TransactionID {
	return slices.Clone(li.sharedOwners)
}

// ExclusiveOwner returns the exclusive owner, if one is set.
func (li *LockInfo) ExclusiveOwner() (primitives.TransactionID, bool) {
	return li.exclusiveOwner, li.hasExclusive
}

// IsEmpty reports whether no transaction holds any lock on the resource.
func (li *LockInfo) IsEmpty() bool {
	return len(li.sharedOwners) == 0 && !li.hasExclusive
}

// soleSharedOwner reports whether txn is the only entry in the shared owner list.
func (li *LockInfo) soleSharedOwner(txn primitives.TransactionID) bool {
	return len(li.sharedOwners) == 1 && li.sharedOwners[0] == txn
}

func (li *LockInfo) addSharedOwner(txn primitives.TransactionID) {
	li.sharedOwners = append(li.sharedOwners, txn)
}

func (li *LockInfo) setExclusiveOwner(txn primitives.TransactionID) {
	li.exclusiveOwner = txn
	li.hasExclusive = true
}

// unlockShared removes every shared entry of txn and returns how many were removed.
func (li *LockInfo) unlockShared(txn primitives.TransactionID) int {
	var removed int
	li.sharedOwners, removed = removeAll(li.sharedOwners, txn)
	return removed
}

// unlockExclusive clears the exclusive owner if it is txn.
func (li *LockInfo) unlockExclusive(txn primitives.TransactionID) bool {
	if !li.hasExclusive || li.exclusiveOwner != txn {
		return false
	}
	li.exclusiveOwner = 0
	li.hasExclusive = false
	return true
}

// ResourceState is a point-in-time copy of one lock table entry.
type ResourceState struct {
	Resource       primitives.ResourceID
	SharedOwners   []primitives.TransactionID
	ExclusiveOwner primitives.TransactionID
	HasExclusive   bool
}

func newResourceState(res primitives.ResourceID, info *LockInfo) ResourceState {
	return ResourceState{
		Resource:       res,
		SharedOwners:   info.SharedOwners(),
		ExclusiveOwner: info.exclusiveOwner,
		HasExclusive:   info.hasExclusive,
	}
}
