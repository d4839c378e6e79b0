// Package scheduler drives a log of operations through the lock manager
// under strict two-phase locking.
//
// Reads take shared locks and writes take exclusive locks as they are
// dispatched; a refused operation goes to the wait queue instead of blocking.
// Commit and abort release every lock of their transaction, append the
// release events to the history and run a retry pass. A retry pass also runs
// before each newly arriving operation.
//
// A retry pass drains the wait queue, then re-dispatches every drained
// operation once, in its original relative order. Operations refused again
// go back to the queue. The pass never loops until a fixed point, so an
// operation unblocked only by grants made during the same pass waits for the
// next trigger. Ordering is first-eligible-wins, not strict arrival order.
//
// Deadlocks and starvation are not resolved. Result reports any wait-for
// cycle left at the end of a run, and Starved lists waiting operations that
// have been refused at least a given number of times.
package scheduler
