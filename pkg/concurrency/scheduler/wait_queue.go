package scheduler

import (
	"slices"

	"twopl/pkg/operation"
	"twopl/pkg/primitives"
)

// Waiter is an operation parked on the wait queue.
type Waiter struct {
	Op         operation.Operation
	EnqueuedAt int // step at which the operation was first refused
	Attempts   int // retry passes that refused it again
}

// WaitQueue is the FIFO of operations whose lock request was refused.
//
// Besides the ordered request list it keeps a reverse index from transaction
// to the number of its operations in the queue.
type WaitQueue struct {
	requests           []*Waiter
	transactionWaiting map[primitives.TransactionID]int
}

// NewWaitQueue creates an empty wait queue.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{
		transactionWaiting: make(map[primitives.TransactionID]int),
	}
}

// Push appends w to the back of the queue.
func (wq *WaitQueue) Push(w *Waiter) {
	wq.requests = append(wq.requests, w)
	wq.transactionWaiting[w.Op.Txn]++
}

// Drain empties the queue and returns its former contents in order.
func (wq *WaitQueue) Drain() []*Waiter {
	drained := wq.requests
	wq.requests = nil
	clear(wq.transactionWaiting)
	return drained
}

// Len returns the number of waiting operations.
func (wq *WaitQueue) Len() int {
	return len(wq.requests)
}

// Operations returns the waiting operations in queue order.
func (wq *WaitQueue) Operations() []operation.Operation {
	ops := make([]operation.Operation, 0, len(wq.requests))
	for _, w := range wq.requests {
		ops = append(ops, w.Op)
	}
	return ops
}

// Waiters returns copies of the queue entries in order.
func (wq *WaitQueue) Waiters() []Waiter {
	waiters := make([]Waiter, 0, len(wq.requests))
	for _, w := range wq.requests {
		waiters = append(waiters, *w)
	}
	return waiters
}

// PendingFor returns the waiting operations of txn in queue order.
func (wq *WaitQueue) PendingFor(txn primitives.TransactionID) []operation.Operation {
	if wq.transactionWaiting[txn] == 0 {
		return nil
	}
	return slices.DeleteFunc(wq.Operations(), func(op operation.Operation) bool {
		return op.Txn != txn
	})
}

// IsWaiting reports whether txn has at least one operation in the queue.
func (wq *WaitQueue) IsWaiting(txn primitives.TransactionID) bool {
	return wq.transactionWaiting[txn] > 0
}
