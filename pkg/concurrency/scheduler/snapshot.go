package scheduler

import (
	"twopl/pkg/concurrency/lock"
	"twopl/pkg/concurrency/transaction"
	"twopl/pkg/operation"
	"twopl/pkg/primitives"
)

// Snapshot is the lock table and wait queue as they stood after one input
// operation was processed.
type Snapshot struct {
	Step       int
	Input      operation.Operation
	Locks      []lock.ResourceState
	Waiting    []operation.Operation
	HistoryLen int
}

// Result is the outcome of a run.
type Result struct {
	History      []operation.Operation
	Pending      []operation.Operation
	Snapshots    []Snapshot
	Transactions []transaction.TransactionContext

	// Blocked lists who each waiting transaction waits on, in transaction
	// order. A transaction waiting only on itself is absent.
	Blocked []Blocked

	// Deadlock holds the members of a wait-for cycle among the pending
	// operations, in wait order, or nil when there is none.
	Deadlock []primitives.TransactionID
}

// Blocked is one waiting transaction and the holders it waits on.
type Blocked struct {
	Txn primitives.TransactionID
	On  []primitives.TransactionID
}

// Stalled reports whether the run ended with operations still waiting.
func (r *Result) Stalled() bool {
	return len(r.Pending) > 0
}
