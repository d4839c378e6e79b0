package scheduler

import (
	"context"
	"log/slog"
	"slices"

	"twopl/pkg/concurrency/lock"
	"twopl/pkg/concurrency/transaction"
	"twopl/pkg/dberror"
	"twopl/pkg/logging"
	"twopl/pkg/operation"
	"twopl/pkg/primitives"
	"twopl/pkg/utils/functools"
)

// Options configures a Scheduler.
type Options struct {
	// RecordSnapshots keeps a Snapshot after every processed input operation.
	RecordSnapshots bool

	// Metrics receives scheduler counters. Unregistered collectors are used when nil.
	Metrics *Metrics
}

// Scheduler owns the lock manager, the wait queue and the final history of a
// single run. It is not safe for concurrent use; a run is processed one
// operation at a time.
type Scheduler struct {
	locks     *lock.LockManager
	waitQueue *WaitQueue
	history   []operation.Operation
	registry  *transaction.TransactionRegistry
	metrics   *Metrics
	log       *slog.Logger

	recordSnapshots bool
	snapshots       []Snapshot
	step            int
}

// NewScheduler creates a scheduler with an empty lock table, wait queue and history.
func NewScheduler(opts Options) *Scheduler {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Scheduler{
		locks:           lock.NewLockManager(),
		waitQueue:       NewWaitQueue(),
		registry:        transaction.NewTransactionRegistry(),
		metrics:         metrics,
		log:             logging.WithComponent("scheduler"),
		recordSnapshots: opts.RecordSnapshots,
	}
}

// Process handles one newly arriving input operation: a retry pass over the
// wait queue first, then the operation itself.
func (s *Scheduler) Process(op operation.Operation) {
	s.observe(op)
	s.retryWaiting()
	if op.Terminates() {
		s.warnStillWaiting(op)
	}
	s.Dispatch(op)

	if s.recordSnapshots {
		snap := s.Snapshot()
		snap.Input = op
		s.snapshots = append(s.snapshots, snap)
	}
	s.step++
}

// Dispatch routes op through the lock manager without a preceding retry pass.
//
// Reads and writes either get their lock, in which case the lock event and
// the operation are appended to the history, or are put on the wait queue.
// Commit and abort release the transaction's locks, append themselves and the
// release events, and run a retry pass. Anything else is a no-op.
func (s *Scheduler) Dispatch(op operation.Operation) {
	s.dispatch(op, nil)
}

// dispatch carries the queue entry of a retried operation so a repeated
// refusal updates it instead of creating a new one.
func (s *Scheduler) dispatch(op operation.Operation, retried *Waiter) {
	switch op.Kind {
	case operation.Read:
		if s.locks.AcquireShared(op.Txn, op.Resource) {
			s.grant(op, operation.NewLockShared(op.Txn, op.Resource), lock.SharedLock)
			return
		}
		s.block(op, retried, lock.SharedLock)

	case operation.Write:
		if s.locks.AcquireExclusive(op.Txn, op.Resource) {
			s.grant(op, operation.NewLockExclusive(op.Txn, op.Resource), lock.ExclusiveLock)
			return
		}
		s.block(op, retried, lock.ExclusiveLock)

	case operation.Commit:
		s.terminate(op, transaction.TxCommitted)

	case operation.Abort:
		// Entries the transaction already put in the history stay there.
		s.terminate(op, transaction.TxAborted)

	default:
		s.metrics.Ignored.Inc()
		s.log.Debug("ignoring operation", "op", op.String(), "kind", op.Kind.String())
	}
}

func (s *Scheduler) grant(op, lockEvent operation.Operation, mode lock.LockType) {
	s.appendHistory(lockEvent, op)
	s.metrics.LocksGranted.WithLabelValues(mode.String()).Inc()
	s.registry.Update(op.Txn, func(ctx *transaction.TransactionContext) {
		if op.Kind == operation.Read {
			ctx.Stats.Reads++
		} else {
			ctx.Stats.Writes++
		}
	})
}

func (s *Scheduler) block(op operation.Operation, retried *Waiter, mode lock.LockType) {
	s.metrics.LocksRefused.WithLabelValues(mode.String()).Inc()

	if retried != nil {
		retried.Attempts++
		s.waitQueue.Push(retried)
	} else {
		s.waitQueue.Push(&Waiter{Op: op, EnqueuedAt: s.step})
		s.registry.Update(op.Txn, func(ctx *transaction.TransactionContext) {
			ctx.Stats.Blocked++
		})
		holders, _ := s.locks.Holders(op.Resource)
		s.log.Debug("operation delayed", "op", op.String(), "step", s.step,
			"shared_owners", holders.SharedOwners,
			"exclusive_owner", holders.ExclusiveOwner,
			"has_exclusive", holders.HasExclusive)
	}
	s.metrics.WaitQueueDepth.Set(float64(s.waitQueue.Len()))
}

func (s *Scheduler) terminate(op operation.Operation, status transaction.TransactionStatus) {
	released := s.locks.ReleaseAll(op.Txn)
	s.appendHistory(op)
	s.appendHistory(released...)
	s.metrics.LocksReleased.Add(float64(len(released)))
	s.registry.SetStatus(op.Txn, status)

	s.retryWaiting()
}

// retryWaiting runs one retry pass. Operations refused again are re-enqueued
// by dispatch itself, behind anything already re-enqueued during this pass.
func (s *Scheduler) retryWaiting() {
	if s.waitQueue.Len() == 0 {
		return
	}

	waiting := s.waitQueue.Drain()
	s.metrics.RetryPasses.Inc()
	s.log.Debug("retrying delayed operations", "count", len(waiting), "step", s.step)

	for _, w := range waiting {
		s.metrics.Retried.Inc()
		s.dispatch(w.Op, w)
	}
	s.metrics.WaitQueueDepth.Set(float64(s.waitQueue.Len()))
}

// observe records the transaction of an input operation in the registry.
// Operations for a transaction that already terminated are still processed.
func (s *Scheduler) observe(op operation.Operation) {
	if op.Kind == operation.Unknown || op.Kind.IsSynthetic() {
		return
	}

	ctx := s.registry.Observe(op.Txn, s.step)
	if ctx.IsTerminated() {
		logging.WithTx(op.Txn).Warn("operation for terminated transaction",
			"op", op.String(), "status", ctx.Status.String(), "step", s.step)
	}
}

// warnStillWaiting flags a commit or abort arriving while operations of the
// same transaction are still queued. Those operations stay queued and may be
// granted later.
func (s *Scheduler) warnStillWaiting(op operation.Operation) {
	if !s.waitQueue.IsWaiting(op.Txn) {
		return
	}
	pending := functools.Map(s.waitQueue.PendingFor(op.Txn), operation.Operation.String)
	logging.WithTx(op.Txn).Warn("transaction ends with operations still waiting",
		"op", op.String(), "waiting", pending, "step", s.step)
}

func (s *Scheduler) appendHistory(ops ...operation.Operation) {
	s.history = append(s.history, ops...)
	s.metrics.HistoryLength.Set(float64(len(s.history)))
}

// Run processes ops in order and returns the outcome. The context is checked
// between operations; on cancellation the partial result is returned together
// with a RUN_CANCELLED error.
func (s *Scheduler) Run(ctx context.Context, ops []operation.Operation) (*Result, error) {
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return s.Result(), dberror.New(dberror.ErrCategoryConcurrency, dberror.CodeRunCancelled, "scheduling run cancelled").
				WithDetail("stopped before operation %d of %d", i+1, len(ops)).
				WithContext("Run", "Scheduler").
				WithCause(err)
		}
		s.Process(op)
	}

	result := s.Result()
	s.log.Info("run finished",
		"operations", len(ops),
		"history", len(result.History),
		"pending", len(result.Pending),
		"deadlock", len(result.Deadlock) > 0)
	return result, nil
}

// Result collects the current outcome of the run.
func (s *Scheduler) Result() *Result {
	res := &Result{
		History:      s.History(),
		Pending:      s.WaitQueue(),
		Snapshots:    s.Snapshots(),
		Transactions: s.Transactions(),
	}
	if graph := s.waitGraph(); graph != nil {
		res.Blocked = blockedOn(graph)
		res.Deadlock = graph.FindCycle()
	}
	return res
}

// History returns a copy of the final history.
func (s *Scheduler) History() []operation.Operation {
	return slices.Clone(s.history)
}

// WaitQueue returns the waiting operations in queue order.
func (s *Scheduler) WaitQueue() []operation.Operation {
	return s.waitQueue.Operations()
}

// LockTable returns the locked resources in resource order.
func (s *Scheduler) LockTable() []lock.ResourceState {
	return s.locks.Snapshot()
}

// Snapshot captures the current lock table and wait queue.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		Step:       s.step,
		Locks:      s.LockTable(),
		Waiting:    s.waitQueue.Operations(),
		HistoryLen: len(s.history),
	}
}

// Snapshots returns the snapshots recorded so far.
func (s *Scheduler) Snapshots() []Snapshot {
	return slices.Clone(s.snapshots)
}

// Transactions returns the registry contents in transaction order.
func (s *Scheduler) Transactions() []transaction.TransactionContext {
	return s.registry.All()
}

// Starved returns the waiting operations that were refused by at least limit retry passes.
func (s *Scheduler) Starved(limit int) []Waiter {
	return slices.DeleteFunc(s.waitQueue.Waiters(), func(w Waiter) bool {
		return w.Attempts < limit
	})
}

// Deadlock returns one wait-for cycle among the waiting operations, or nil.
// The cycle is only reported; nothing is aborted.
func (s *Scheduler) Deadlock() []primitives.TransactionID {
	if graph := s.waitGraph(); graph != nil {
		return graph.FindCycle()
	}
	return nil
}

// BlockedOn lists, for each transaction with a waiting operation, the
// transactions holding the locks it waits for.
func (s *Scheduler) BlockedOn() []Blocked {
	if graph := s.waitGraph(); graph != nil {
		return blockedOn(graph)
	}
	return nil
}

// waitGraph builds the wait-for graph of the queue, or returns nil when
// nothing is waiting.
func (s *Scheduler) waitGraph() *lock.DependencyGraph {
	if s.waitQueue.Len() == 0 {
		return nil
	}
	return s.locks.WaitsFor(s.waitQueue.Operations())
}

func blockedOn(graph *lock.DependencyGraph) []Blocked {
	return functools.Map(graph.GetWaitingTransactions(), func(tid primitives.TransactionID) Blocked {
		return Blocked{Txn: tid, On: graph.WaitsOn(tid)}
	})
}
