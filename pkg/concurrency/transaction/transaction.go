// Package transaction keeps per-transaction bookkeeping for a scheduling run.
//
// The scheduler does not need any of it to decide grants: a transaction's
// locks live only in the lock manager. The registry exists so a run can
// report what each transaction did and flag operations that arrive after a
// transaction has already committed or aborted.
package transaction

import (
	"twopl/pkg/primitives"
)

// TransactionStatus represents the current state of a transaction
type TransactionStatus int

const (
	TxActive TransactionStatus = iota
	TxCommitted
	TxAborted
)

func (ts TransactionStatus) String() string {
	switch ts {
	case TxActive:
		return "ACTIVE"
	case TxCommitted:
		return "COMMITTED"
	case TxAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// TransactionStats counts what happened to a transaction's operations.
type TransactionStats struct {
	Reads   int // reads granted
	Writes  int // writes granted
	Blocked int // times one of its operations was put on the wait queue
}

// TransactionContext is the state recorded for one transaction.
type TransactionContext struct {
	ID        primitives.TransactionID
	Status    TransactionStatus
	FirstSeen int // step of the first input operation that named it
	Stats     TransactionStats
}

// IsTerminated reports whether the transaction committed or aborted.
func (tc *TransactionContext) IsTerminated() bool {
	return tc.Status == TxCommitted || tc.Status == TxAborted
}
