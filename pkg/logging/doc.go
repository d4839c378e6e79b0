// Package logging provides a process-wide structured logger for the
// scheduler simulator.
//
// The package wraps [log/slog] and exposes a single global logger instance
// that is initialized once and then retrieved via GetLogger. The lock
// manager, scheduler and CLI obtain their loggers through this package so
// that log level and output destination are controlled from a single place.
//
// # Initialisation
//
// Call Init (or InitDefault for sensible defaults) once at program startup:
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"}); err != nil {
//	    log.Fatal(err)
//	}
//
// InitDefault writes WARN-level text logs to stderr, which keeps the
// simulator's rendered history on stdout readable.
//
// # Context helpers
//
//	log := logging.WithTx(txn)            // adds tx_id field
//	log := logging.WithLock(txn, res)     // adds tx_id and resource fields
//	log := logging.WithComponent("sched") // adds component field
package logging
