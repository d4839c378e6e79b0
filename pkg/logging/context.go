package logging

import (
	"log/slog"

	"twopl/pkg/primitives"
)

// WithTx creates a logger with transaction context.
//
// Example:
//
//	log := logging.WithTx(op.Txn)
//	log.Warn("operation after commit", "op", op)
func WithTx(txn primitives.TransactionID) *slog.Logger {
	return GetLogger().With("tx_id", txn.Int())
}

// WithLock creates a logger with lock context.
// Useful for lock manager operations.
//
// Example:
//
//	log := logging.WithLock(txn, res)
//	log.Debug("lock acquired", "lock_type", "exclusive")
func WithLock(txn primitives.TransactionID, res primitives.ResourceID) *slog.Logger {
	return GetLogger().With("tx_id", txn.Int(), "resource", string(res))
}

// WithComponent creates a logger with component/subsystem context.
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with error context.
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
