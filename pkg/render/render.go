// Package render formats scheduler output for humans: the final history,
// lock table and wait queue snapshots, and a per-run report. Plain output is
// stable text suitable for diffs; styled output uses lipgloss colors.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"twopl/pkg/concurrency/lock"
	"twopl/pkg/concurrency/scheduler"
	"twopl/pkg/concurrency/transaction"
	"twopl/pkg/operation"
	"twopl/pkg/primitives"
	"twopl/pkg/utils/functools"
)

// Renderer formats scheduler state as text.
type Renderer struct {
	styled    bool
	delimiter string
}

// New creates a Renderer. History entries are joined with delimiter.
func New(styled bool, delimiter string) *Renderer {
	if delimiter == "" {
		delimiter = "-"
	}
	return &Renderer{styled: styled, delimiter: delimiter}
}

func (r *Renderer) paint(style lipgloss.Style, s string) string {
	if !r.styled {
		return s
	}
	return style.Render(s)
}

// Operation renders one operation in log notation.
func (r *Renderer) Operation(op operation.Operation) string {
	text := op.String()
	switch {
	case op.Kind.IsSynthetic():
		return r.paint(lockOpStyle, text)
	case op.Kind == operation.Commit:
		return r.paint(commitStyle, text)
	case op.Kind == operation.Abort:
		return r.paint(abortStyle, text)
	default:
		return r.paint(dataOpStyle, text)
	}
}

// History renders ops joined by the delimiter.
func (r *Renderer) History(ops []operation.Operation) string {
	known := functools.Filter(ops, func(op operation.Operation) bool {
		return op.Kind != operation.Unknown
	})
	return strings.Join(functools.Map(known, r.Operation), r.delimiter)
}

// LockTable renders one entry per locked resource, e.g. "x S{1,2}" or "y S{3} X{3}".
func (r *Renderer) LockTable(states []lock.ResourceState) string {
	if len(states) == 0 {
		return "(no locks held)"
	}

	entries := functools.Map(states, func(rs lock.ResourceState) string {
		var modes []string
		if len(rs.SharedOwners) > 0 {
			modes = append(modes, "S{"+joinTxns(rs.SharedOwners)+"}")
		}
		if rs.HasExclusive {
			modes = append(modes, fmt.Sprintf("X{%d}", uint32(rs.ExclusiveOwner)))
		}
		return string(rs.Resource) + " " + strings.Join(modes, " ")
	})
	return strings.Join(entries, ", ")
}

// Owners returns the shared owners and the exclusive owner of rs as table
// cells, "-" standing for none.
func Owners(rs lock.ResourceState) (shared, exclusive string) {
	shared, exclusive = "-", "-"
	if len(rs.SharedOwners) > 0 {
		shared = joinTxns(rs.SharedOwners)
	}
	if rs.HasExclusive {
		exclusive = fmt.Sprint(uint32(rs.ExclusiveOwner))
	}
	return shared, exclusive
}

// WaitQueue renders the waiting operations in queue order.
func (r *Renderer) WaitQueue(ops []operation.Operation) string {
	if len(ops) == 0 {
		return "(empty)"
	}
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, r.paint(pendingStyle, op.String()))
	}
	return strings.Join(parts, " ")
}

// Snapshot renders the state recorded after one input operation.
func (r *Renderer) Snapshot(s scheduler.Snapshot) string {
	line := fmt.Sprintf("[%d] %s  locks: %s  waiting: %s",
		s.Step, r.Operation(s.Input), r.LockTable(s.Locks), r.WaitQueue(s.Waiting))
	return r.paint(snapshotStyle, line)
}

// Cycle renders a wait-for cycle as "T1 -> T2 -> T1".
func (r *Renderer) Cycle(cycle []primitives.TransactionID) string {
	if len(cycle) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cycle)+1)
	for _, tid := range cycle {
		parts = append(parts, tid.String())
	}
	parts = append(parts, cycle[0].String())
	return strings.Join(parts, " -> ")
}

// Blocked renders who each waiting transaction waits on, as
// "T3 on T1,T2; T4 on T1".
func (r *Renderer) Blocked(blocked []scheduler.Blocked) string {
	return strings.Join(functools.Map(blocked, func(bl scheduler.Blocked) string {
		return bl.Txn.String() + " on " + strings.Join(functools.Map(bl.On, primitives.TransactionID.String), ",")
	}), "; ")
}

// Transaction renders one registry entry.
func (r *Renderer) Transaction(ctx transaction.TransactionContext) string {
	return fmt.Sprintf("%-4s %-9s reads=%d writes=%d blocked=%d",
		ctx.ID, ctx.Status, ctx.Stats.Reads, ctx.Stats.Writes, ctx.Stats.Blocked)
}

// Report renders the outcome of one run. Snapshots are included only when
// the result carries them.
func (r *Renderer) Report(name string, res *scheduler.Result) string {
	var b strings.Builder

	if name != "" {
		b.WriteString(r.paint(titleStyle, "== "+name+" =="))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s %s\n", r.paint(labelStyle, "history:"), r.History(res.History))
	fmt.Fprintf(&b, "%s %s\n", r.paint(labelStyle, "pending:"), r.WaitQueue(res.Pending))

	if len(res.Blocked) > 0 {
		fmt.Fprintf(&b, "%s %s\n", r.paint(labelStyle, "blocked:"), r.Blocked(res.Blocked))
	}
	if len(res.Deadlock) > 0 {
		fmt.Fprintf(&b, "%s %s\n", r.paint(warningStyle, "deadlock:"), r.Cycle(res.Deadlock))
	}

	if len(res.Transactions) > 0 {
		b.WriteString(r.paint(labelStyle, "transactions:"))
		b.WriteString("\n")
		for _, ctx := range res.Transactions {
			b.WriteString("  " + r.Transaction(ctx) + "\n")
		}
	}

	if len(res.Snapshots) > 0 {
		b.WriteString(r.paint(labelStyle, "snapshots:"))
		b.WriteString("\n")
		for _, s := range res.Snapshots {
			b.WriteString(indent(r.Snapshot(s)) + "\n")
		}
	}
	return b.String()
}

func joinTxns(ids []primitives.TransactionID) string {
	return strings.Join(functools.Map(ids, func(id primitives.TransactionID) string {
		return fmt.Sprint(uint32(id))
	}), ",")
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
