package transaction

import (
	"maps"
	"slices"
	"sync"

	"twopl/pkg/primitives"
)

// TransactionRegistry tracks every transaction seen during a run.
type TransactionRegistry struct {
	contexts map[primitives.TransactionID]*TransactionContext
	mutex    sync.RWMutex
}

// NewTransactionRegistry creates an empty registry.
func NewTransactionRegistry() *TransactionRegistry {
	return &TransactionRegistry{
		contexts: make(map[primitives.TransactionID]*TransactionContext),
	}
}

// Observe returns the context for tid, registering it as active at step if unseen.
func (tr *TransactionRegistry) Observe(tid primitives.TransactionID, step int) *TransactionContext {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	ctx, exists := tr.contexts[tid]
	if exists {
		return ctx
	}

	ctx = &TransactionContext{ID: tid, Status: TxActive, FirstSeen: step}
	tr.contexts[tid] = ctx
	return ctx
}

// Update applies fn to the context of tid under the registry lock.
// Unknown transactions are ignored.
func (tr *TransactionRegistry) Update(tid primitives.TransactionID, fn func(ctx *TransactionContext)) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	if ctx, exists := tr.contexts[tid]; exists {
		fn(ctx)
	}
}

// SetStatus records the terminal status of tid.
func (tr *TransactionRegistry) SetStatus(tid primitives.TransactionID, status TransactionStatus) {
	tr.Update(tid, func(ctx *TransactionContext) {
		ctx.Status = status
	})
}

// All returns copies of all transaction contexts in ID order.
func (tr *TransactionRegistry) All() []TransactionContext {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	all := make([]TransactionContext, 0, len(tr.contexts))
	for _, tid := range slices.Sorted(maps.Keys(tr.contexts)) {
		all = append(all, *tr.contexts[tid])
	}
	return all
}
