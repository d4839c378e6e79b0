package scheduler

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twopl/pkg/concurrency/lock"
	"twopl/pkg/concurrency/transaction"
	"twopl/pkg/dberror"
	"twopl/pkg/logging"
	"twopl/pkg/operation"
	"twopl/pkg/primitives"
)

var (
	r  = operation.NewRead
	w  = operation.NewWrite
	ls = operation.NewLockShared
	lx = operation.NewLockExclusive
	us = operation.NewUnlockShared
	ux = operation.NewUnlockExclusive
	c  = operation.NewCommit
	a  = operation.NewAbort
)

func ops(list ...operation.Operation) []operation.Operation { return list }

func run(t *testing.T, input []operation.Operation) (*Scheduler, *Result) {
	t.Helper()
	s := NewScheduler(Options{RecordSnapshots: true})
	res, err := s.Run(context.Background(), input)
	require.NoError(t, err)
	return s, res
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name        string
		input       []operation.Operation
		wantHistory []operation.Operation
		wantPending []operation.Operation
	}{
		{
			name:  "A: concurrent readers",
			input: ops(r(1, "x"), r(2, "x"), c(1), c(2)),
			wantHistory: ops(
				ls(1, "x"), r(1, "x"),
				ls(2, "x"), r(2, "x"),
				c(1), us(1, "x"),
				c(2), us(2, "x"),
			),
		},
		{
			name:  "B: reader waits for writer commit",
			input: ops(w(1, "x"), r(2, "x"), c(1)),
			wantHistory: ops(
				lx(1, "x"), w(1, "x"),
				c(1), ux(1, "x"),
				ls(2, "x"), r(2, "x"),
			),
		},
		{
			name:  "C: lock upgrade",
			input: ops(r(1, "x"), w(1, "x"), c(1)),
			wantHistory: ops(
				ls(1, "x"), r(1, "x"),
				lx(1, "x"), w(1, "x"),
				c(1), us(1, "x"), ux(1, "x"),
			),
		},
		{
			name:        "D: writer stays queued past its own commit",
			input:       ops(w(1, "x"), w(2, "x"), c(2)),
			wantHistory: ops(lx(1, "x"), w(1, "x"), c(2)),
			wantPending: ops(w(2, "x")),
		},
		{
			name:  "D continued: holder commit frees the writer",
			input: ops(w(1, "x"), w(2, "x"), c(2), c(1)),
			wantHistory: ops(
				lx(1, "x"), w(1, "x"),
				c(2),
				c(1), ux(1, "x"),
				lx(2, "x"), w(2, "x"),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, res := run(t, tt.input)
			assert.Equal(t, tt.wantHistory, res.History)
			assert.Equal(t, tt.wantPending, emptyAsNil(res.Pending))
		})
	}
}

func emptyAsNil(o []operation.Operation) []operation.Operation {
	if len(o) == 0 {
		return nil
	}
	return o
}

func TestAbortReleasesAndKeepsHistory(t *testing.T) {
	s, res := run(t, ops(w(1, "x"), r(2, "x"), a(1)))

	assert.Equal(t, ops(
		lx(1, "x"), w(1, "x"),
		a(1), ux(1, "x"),
		ls(2, "x"), r(2, "x"),
	), res.History)

	ctx := findTxn(t, res, 1)
	assert.Equal(t, transaction.TxAborted, ctx.Status)
	assert.Empty(t, s.WaitQueue())
}

func TestAbortDoesNotDropOwnWaitingOperation(t *testing.T) {
	_, res := run(t, ops(w(1, "x"), w(2, "x"), a(2)))

	assert.Equal(t, ops(lx(1, "x"), w(1, "x"), a(2)), res.History)
	assert.Equal(t, ops(w(2, "x")), res.Pending)
}

func TestUnknownAndSyntheticInputAreNoOps(t *testing.T) {
	metrics := NewMetrics(nil)
	s := NewScheduler(Options{Metrics: metrics})

	for _, op := range ops(r(1, "x"), operation.NewUnknown(), ls(2, "x"), ux(1, "x"), c(1)) {
		s.Process(op)
	}

	assert.Equal(t, ops(ls(1, "x"), r(1, "x"), c(1), us(1, "x")), s.History())
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.Ignored))
	assert.Len(t, s.Transactions(), 1, "unknown and synthetic input register no transaction")
}

func TestReadAfterOwnWriteWaitsForCommit(t *testing.T) {
	_, res := run(t, ops(w(1, "x"), r(1, "x"), c(1)))

	assert.Equal(t, ops(
		lx(1, "x"), w(1, "x"),
		c(1), ux(1, "x"),
		ls(1, "x"), r(1, "x"),
	), res.History)
	assert.Empty(t, res.Pending)
}

func TestFirstEligibleWins(t *testing.T) {
	s := NewScheduler(Options{})
	for _, op := range ops(w(1, "x"), r(2, "x"), w(3, "x"), c(1)) {
		s.Process(op)
	}

	// r2 is granted by the retry pass after c1; w3 is refused again.
	assert.Equal(t, ops(w(3, "x")), s.WaitQueue())

	// A later reader is granted ahead of the still-blocked writer.
	s.Process(r(4, "x"))
	assert.Equal(t, ops(w(3, "x")), s.WaitQueue())

	history := s.History()
	assert.Equal(t, ops(ls(4, "x"), r(4, "x")), history[len(history)-2:])
}

func TestRetryPreservesRelativeOrder(t *testing.T) {
	s := NewScheduler(Options{})
	for _, op := range ops(w(1, "x"), w(1, "y"), r(2, "y"), r(3, "x"), w(4, "x"), r(5, "y")) {
		s.Process(op)
	}
	assert.Equal(t, ops(r(2, "y"), r(3, "x"), w(4, "x"), r(5, "y")), s.WaitQueue())

	s.Process(c(1))

	assert.Equal(t, ops(w(4, "x")), s.WaitQueue())
	history := s.History()
	assert.Equal(t, ops(
		c(1), ux(1, "x"), ux(1, "y"),
		ls(2, "y"), r(2, "y"),
		ls(3, "x"), r(3, "x"),
		ls(5, "y"), r(5, "y"),
	), history[4:])
}

func TestStarved(t *testing.T) {
	s := NewScheduler(Options{})
	for _, op := range ops(w(1, "x"), r(2, "x"), r(1, "y"), r(1, "z")) {
		s.Process(op)
	}

	starved := s.Starved(2)
	require.Len(t, starved, 1)
	assert.Equal(t, r(2, "x"), starved[0].Op)
	assert.Equal(t, 1, starved[0].EnqueuedAt)
	assert.Equal(t, 2, starved[0].Attempts)

	assert.Empty(t, s.Starved(3))
}

func TestDeadlockReportedNotBroken(t *testing.T) {
	_, res := run(t, ops(r(1, "x"), r(2, "y"), w(1, "y"), w(2, "x"), c(3)))

	assert.Equal(t, []primitives.TransactionID{1, 2}, res.Deadlock)
	assert.Equal(t, ops(w(1, "y"), w(2, "x")), res.Pending)
	assert.True(t, res.Stalled())
	assert.Equal(t, []Blocked{{Txn: 1, On: []primitives.TransactionID{2}}, {Txn: 2, On: []primitives.TransactionID{1}}}, res.Blocked)
}

func TestBlockedOnListsHolders(t *testing.T) {
	s := NewScheduler(Options{})
	for _, op := range ops(r(1, "x"), r(2, "x"), w(3, "x"), r(4, "y"), w(4, "x")) {
		s.Process(op)
	}

	assert.Equal(t, []Blocked{
		{Txn: 3, On: []primitives.TransactionID{1, 2}},
		{Txn: 4, On: []primitives.TransactionID{1, 2}},
	}, s.BlockedOn())
	assert.Nil(t, s.Deadlock())

	res := s.Result()
	assert.Equal(t, s.BlockedOn(), res.Blocked)
	assert.Nil(t, res.Deadlock)
}

func TestNoDeadlockWhenQueueEmpty(t *testing.T) {
	_, res := run(t, ops(r(1, "x"), c(1)))
	assert.Nil(t, res.Deadlock)
	assert.Nil(t, res.Blocked)
	assert.False(t, res.Stalled())
}

func TestSnapshotsAfterEachInput(t *testing.T) {
	_, res := run(t, ops(w(1, "x"), r(2, "x"), c(1)))
	require.Len(t, res.Snapshots, 3)

	first := res.Snapshots[0]
	assert.Equal(t, 0, first.Step)
	assert.Equal(t, w(1, "x"), first.Input)
	require.Len(t, first.Locks, 1)
	assert.True(t, first.Locks[0].HasExclusive)
	assert.Empty(t, first.Waiting)

	second := res.Snapshots[1]
	assert.Equal(t, ops(r(2, "x")), second.Waiting)
	assert.Equal(t, 2, second.HistoryLen)

	third := res.Snapshots[2]
	assert.Empty(t, third.Waiting)
	assert.Equal(t, []lock.ResourceState{{
		Resource:     "x",
		SharedOwners: []primitives.TransactionID{2},
	}}, third.Locks)
	assert.Equal(t, 6, third.HistoryLen)
}

func TestSnapshotsDisabledByDefault(t *testing.T) {
	s := NewScheduler(Options{})
	s.Process(r(1, "x"))
	assert.Empty(t, s.Snapshots())
	assert.Equal(t, 1, s.Snapshot().Step)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	s := NewScheduler(Options{Metrics: metrics})

	_, err := s.Run(context.Background(), ops(w(1, "x"), r(2, "x"), c(1)))
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LocksGranted.WithLabelValues("exclusive")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LocksGranted.WithLabelValues("shared")))
	// Refused on arrival and again by the pass that runs before c1.
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.LocksRefused.WithLabelValues("shared")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RetryPasses))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Retried))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LocksReleased))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.WaitQueueDepth))
	assert.Equal(t, float64(6), testutil.ToFloat64(metrics.HistoryLength))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestTransactionStats(t *testing.T) {
	_, res := run(t, ops(r(1, "x"), w(1, "y"), w(2, "x"), c(1), c(2)))

	one := findTxn(t, res, 1)
	assert.Equal(t, transaction.TransactionStats{Reads: 1, Writes: 1}, one.Stats)
	assert.Equal(t, transaction.TxCommitted, one.Status)

	two := findTxn(t, res, 2)
	assert.Equal(t, transaction.TransactionStats{Writes: 1, Blocked: 1}, two.Stats)
	assert.Equal(t, 2, two.FirstSeen)
}

func TestOperationAfterTerminationIsProcessedAndLogged(t *testing.T) {
	require.NoError(t, logging.Close())
	var buf bytes.Buffer
	require.NoError(t, logging.Init(logging.Config{Level: logging.LevelWarn, Writer: &buf}))
	t.Cleanup(func() { _ = logging.Close() })

	_, res := run(t, ops(r(1, "x"), c(1), w(1, "x")))

	assert.Equal(t, ops(ls(1, "x"), r(1, "x"), c(1), us(1, "x"), lx(1, "x"), w(1, "x")), res.History)
	assert.Contains(t, buf.String(), "operation for terminated transaction")
	assert.Contains(t, buf.String(), "tx_id=1")
}

func TestTerminationWithOperationsStillWaitingIsLogged(t *testing.T) {
	require.NoError(t, logging.Close())
	var buf bytes.Buffer
	require.NoError(t, logging.Init(logging.Config{Level: logging.LevelWarn, Writer: &buf}))
	t.Cleanup(func() { _ = logging.Close() })

	_, res := run(t, ops(r(1, "x"), w(2, "x"), c(2), c(1)))

	// c2 is processed even though w2 waits; w2 is granted once c1 frees x.
	assert.Equal(t, ops(
		ls(1, "x"), r(1, "x"),
		c(2),
		c(1), us(1, "x"),
		lx(2, "x"), w(2, "x"),
	), res.History)
	assert.Contains(t, buf.String(), "transaction ends with operations still waiting")
	assert.Contains(t, buf.String(), "tx_id=2")
	assert.Contains(t, buf.String(), "w2(x)")
	assert.NotContains(t, buf.String(), "tx_id=1")
}

func TestDelayLogNamesHolders(t *testing.T) {
	require.NoError(t, logging.Close())
	var buf bytes.Buffer
	require.NoError(t, logging.Init(logging.Config{Level: logging.LevelDebug, Writer: &buf}))
	t.Cleanup(func() { _ = logging.Close() })

	s := NewScheduler(Options{})
	s.Process(w(1, "x"))
	s.Process(r(2, "x"))

	assert.Contains(t, buf.String(), "operation delayed")
	assert.Contains(t, buf.String(), "op=r2(x)")
	assert.Contains(t, buf.String(), "has_exclusive=true")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScheduler(Options{})
	res, err := s.Run(ctx, ops(r(1, "x"), c(1)))

	require.Error(t, err)
	assert.True(t, dberror.HasCode(err, dberror.CodeRunCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Empty(t, res.History)
}

// A finite log always terminates: each arriving operation triggers at most a
// bounded number of single retry passes, never a loop to a fixed point.
func TestFiniteLogTerminates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	resources := []primitives.ResourceID{"a", "b", "c", "d"}

	var input []operation.Operation
	for i := 0; i < 3000; i++ {
		txn := primitives.TransactionID(rng.Intn(20))
		res := resources[rng.Intn(len(resources))]
		switch rng.Intn(6) {
		case 0, 1, 2:
			input = append(input, r(txn, res))
		case 3, 4:
			input = append(input, w(txn, res))
		case 5:
			input = append(input, c(txn))
		}
	}

	_, res := run(t, input)
	require.Len(t, res.Snapshots, len(input))

	for _, snap := range res.Snapshots {
		for _, rs := range snap.Locks {
			if !rs.HasExclusive {
				continue
			}
			for _, owner := range rs.SharedOwners {
				require.Equal(t, rs.ExclusiveOwner, owner, "step %d resource %s", snap.Step, rs.Resource)
			}
		}
	}

	// Every granted read or write is immediately preceded by its lock event.
	for i, op := range res.History {
		switch op.Kind {
		case operation.Read:
			require.Equal(t, ls(op.Txn, op.Resource), res.History[i-1])
		case operation.Write:
			require.Equal(t, lx(op.Txn, op.Resource), res.History[i-1])
		}
	}
}

func findTxn(t *testing.T, res *Result, id primitives.TransactionID) transaction.TransactionContext {
	t.Helper()
	for _, ctx := range res.Transactions {
		if ctx.ID == id {
			return ctx
		}
	}
	t.Fatalf("transaction %d not in result", id)
	return transaction.TransactionContext{}
}
