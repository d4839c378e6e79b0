// Package dberror provides the structured error type used outside the lock
// manager core: log parsing, configuration and the simulation driver.
package dberror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryUser represents errors caused by invalid input.
	// Examples: a malformed log record, a read without a resource.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategorySystem represents errors in the environment the simulator runs in.
	// Examples: unreadable log file, invalid configuration file.
	ErrCategorySystem

	// ErrCategoryConcurrency represents errors from the scheduling run itself.
	// Examples: a run cancelled through its context.
	ErrCategoryConcurrency
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "user"
	case ErrCategorySystem:
		return "system"
	case ErrCategoryConcurrency:
		return "concurrency"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Error codes used across the module.
const (
	CodeMalformedEntry = "MALFORMED_ENTRY"
	CodeMissingInput   = "MISSING_INPUT"
	CodeReadInput      = "READ_INPUT_FAILED"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeRunCancelled   = "RUN_CANCELLED"
	CodeMetricsExport  = "METRICS_EXPORT_FAILED"
)

// DBError represents a structured error with context information.
type DBError struct {
	// Code is a unique identifier for this error type (e.g., "MALFORMED_ENTRY").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance.
	Detail string

	// Hint suggests how the user might fix or work around this error.
	Hint string

	// Operation identifies what was being performed when the error occurred.
	// Examples: "Parse", "Run", "LoadConfig".
	Operation string

	// Component identifies where the error originated.
	// Examples: "OpLog", "Scheduler", "CLI".
	Component string

	// Cause is the underlying error that triggered this error.
	Cause error

	// Stack contains the call stack where this error was created.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with context information.
// If the error is already a DBError, it enriches the existing error with
// operation and component context (only if not already set).
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// WithDetail sets Detail and returns the receiver for chaining.
func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint sets Hint and returns the receiver for chaining.
func (e *DBError) WithHint(hint string) *DBError {
	e.Hint = hint
	return e
}

// WithContext sets Operation and Component and returns the receiver for chaining.
func (e *DBError) WithContext(operation, component string) *DBError {
	e.Operation = operation
	e.Component = component
	return e
}

// WithCause sets Cause and returns the receiver for chaining.
func (e *DBError) WithCause(cause error) *DBError {
	e.Cause = cause
	return e
}

// HasCode reports whether any DBError in err's chain carries code.
func HasCode(err error, code string) bool {
	var dbErr *DBError
	for err != nil {
		if !errors.As(err, &dbErr) {
			return false
		}
		if dbErr.Code == code {
			return true
		}
		err = dbErr.Cause
	}
	return false
}

// captureStack skips captureStack, New/Wrap, and runtime.Callers itself.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the standard Go error interface
//
// The format follows the pattern:
// [ERROR_CODE] Message: Detail (operation: Operation, component: Component) caused by: underlying error
func (e *DBError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}

	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Component != "" {
			fmt.Fprintf(&b, ", component: %s", e.Component)
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}

	return b.String()
}

// Unwrap returns the underlying cause error, enabling error chain traversal
// with Go's standard error handling functions like errors.Is and errors.As.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}

	return b.String()
}
