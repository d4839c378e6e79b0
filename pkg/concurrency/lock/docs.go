// Package lock implements the resource lock table of the strict Two-Phase
// Locking (2PL) scheduler.
//
// # Overview
//
// A transaction acquires locks as its reads and writes are dispatched and
// releases all of them at once when it commits or aborts. Locks are never
// released mid-transaction.
//
// Two lock modes are supported:
//
//   - [SharedLock] is taken for a read and is compatible with other shared locks.
//   - [ExclusiveLock] is taken for a write and conflicts with every other lock.
//
// A transaction that is the sole shared owner of a resource may upgrade to
// exclusive. Its shared entry is left in place after the upgrade. A shared
// request is refused whenever an exclusive owner exists, including when the
// requester is that owner.
//
// # Components
//
//   - [LockManager] is the single entry point: AcquireShared, AcquireExclusive, ReleaseAll.
//   - [LockTable] is the ordered resource to [LockInfo] map. Its scan order fixes
//     the order of release events.
//   - [LockGrantor] holds the compatibility rules and performs grants.
//   - [DependencyGraph] is the wait-for graph built on demand to report cycles.
//
// # Invariants
//
//   - A resource never has both a non-empty shared owner list and an exclusive
//     owner, except for the upgrade case where the only shared owner is the
//     exclusive owner itself.
//   - After ReleaseAll(t), t owns nothing anywhere in the table.
//   - Acquisition never blocks and never queues; queuing belongs to the scheduler.
//   - Deadlocks are not resolved. A cycle in the wait-for graph is reported, not broken.
package lock
