package lock

import (
	"github.com/tidwall/btree"

	"twopl/pkg/primitives"
)

// LockTable maps resources to their lock state.
//
// Entries are kept in an ordered B-tree keyed by resource name so that every
// scan, and therefore the order of release events, is deterministic.
type LockTable struct {
	entries btree.Map[string, *LockInfo]
}

func NewLockTable() *LockTable {
	return &LockTable{}
}

// Get returns the entry for res, if one was ever created.
func (lt *LockTable) Get(res primitives.ResourceID) (*LockInfo, bool) {
	return lt.entries.Get(string(res))
}

// GetOrCreate returns the entry for res, creating an empty one on first use.
func (lt *LockTable) GetOrCreate(res primitives.ResourceID) *LockInfo {
	if info, ok := lt.entries.Get(string(res)); ok {
		return info
	}
	info := &LockInfo{}
	lt.entries.Set(string(res), info)
	return info
}

// Scan calls fn for every entry in ascending resource order until fn returns false.
func (lt *LockTable) Scan(fn func(res primitives.ResourceID, info *LockInfo) bool) {
	lt.entries.Scan(func(key string, info *LockInfo) bool {
		return fn(primitives.ResourceID(key), info)
	})
}

// Snapshot copies every non-empty entry in resource order.
func (lt *LockTable) Snapshot() []ResourceState {
	states := make([]ResourceState, 0, lt.entries.Len())
	lt.Scan(func(res primitives.ResourceID, info *LockInfo) bool {
		if !info.IsEmpty() {
			states = append(states, newResourceState(res, info))
		}
		return true
	})
	return states
}
