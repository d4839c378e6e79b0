package lock

import (
	"slices"

	"twopl/pkg/primitives"
)

// DependencyGraph tracks wait-for relationships between transactions.
// If transaction A is waiting for a lock held by transaction B, there is an
// edge from A to B. A cycle means none of its members can ever proceed.
//
// The scheduler never breaks cycles; the graph only exists so that a run can
// report the transactions that are stuck. It is built for one query and is
// not safe for concurrent use.
type DependencyGraph struct {
	edges map[primitives.TransactionID]map[primitives.TransactionID]bool
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		edges: make(map[primitives.TransactionID]map[primitives.TransactionID]bool),
	}
}

// AddEdge records that waiter is blocked on a lock held by holder.
func (dg *DependencyGraph) AddEdge(waiter, holder primitives.TransactionID) {
	if dg.edges[waiter] == nil {
		dg.edges[waiter] = make(map[primitives.TransactionID]bool)
	}
	dg.edges[waiter][holder] = true
}

// FindCycle returns the transactions of one cycle in wait order, or nil.
// Nodes and neighbours are visited in ascending ID order so the same graph
// always yields the same cycle.
func (dg *DependencyGraph) FindCycle() []primitives.TransactionID {
	visited := make(map[primitives.TransactionID]bool)
	onStack := make(map[primitives.TransactionID]bool)
	var path []primitives.TransactionID

	var dfs func(tid primitives.TransactionID) []primitives.TransactionID
	dfs = func(tid primitives.TransactionID) []primitives.TransactionID {
		visited[tid] = true
		onStack[tid] = true
		path = append(path, tid)

		for _, next := range sortedKeys(dg.edges[tid]) {
			if onStack[next] {
				start := slices.Index(path, next)
				return slices.Clone(path[start:])
			}
			if !visited[next] {
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}

		onStack[tid] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, tid := range sortedKeys(dg.edges) {
		if visited[tid] {
			continue
		}
		if cycle := dfs(tid); cycle != nil {
			return cycle
		}
	}
	return nil
}

// GetWaitingTransactions returns, in ascending order, every transaction with
// an outgoing edge.
func (dg *DependencyGraph) GetWaitingTransactions() []primitives.TransactionID {
	return sortedKeys(dg.edges)
}

// WaitsOn returns, in ascending order, the transactions waiter is blocked on.
func (dg *DependencyGraph) WaitsOn(waiter primitives.TransactionID) []primitives.TransactionID {
	return sortedKeys(dg.edges[waiter])
}

func sortedKeys[V any](m map[primitives.TransactionID]V) []primitives.TransactionID {
	keys := make([]primitives.TransactionID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
