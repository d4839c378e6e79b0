// Package operation defines the typed operations that flow through the
// scheduler: the reads, writes, commits and aborts of the input log, and the
// synthetic lock and unlock events the scheduler interleaves into its history.
package operation

import (
	"fmt"

	"twopl/pkg/primitives"
)

// Kind tags the variant of an Operation.
type Kind uint8

const (
	// Unknown marks a log entry whose command was not recognised.
	// The scheduler accepts it as a no-op.
	Unknown Kind = iota
	Read
	Write
	LockShared
	LockExclusive
	UnlockShared
	UnlockExclusive
	Commit
	Abort
)

var kindNames = map[Kind]string{
	Unknown:         "Unknown",
	Read:            "Read",
	Write:           "Write",
	LockShared:      "LockShared",
	LockExclusive:   "LockExclusive",
	UnlockShared:    "UnlockShared",
	UnlockExclusive: "UnlockExclusive",
	Commit:          "Commit",
	Abort:           "Abort",
}

// Command returns the short log mnemonic of the kind ("r", "lx", "c", ...).
// Unknown has no mnemonic and returns "?".
func (k Kind) Command() string {
	switch k {
	case Read:
		return "r"
	case Write:
		return "w"
	case LockShared:
		return "ls"
	case LockExclusive:
		return "lx"
	case UnlockShared:
		return "us"
	case UnlockExclusive:
		return "ux"
	case Commit:
		return "c"
	case Abort:
		return "a"
	default:
		return "?"
	}
}

// KindFromCommand maps a log mnemonic to its Kind. Unrecognised commands map to Unknown.
func KindFromCommand(cmd string) Kind {
	switch cmd {
	case "r":
		return Read
	case "w":
		return Write
	case "ls":
		return LockShared
	case "lx":
		return LockExclusive
	case "us":
		return UnlockShared
	case "ux":
		return UnlockExclusive
	case "c":
		return Commit
	case "a":
		return Abort
	default:
		return Unknown
	}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsSynthetic reports whether the kind is only ever produced by the scheduler.
func (k Kind) IsSynthetic() bool {
	switch k {
	case LockShared, LockExclusive, UnlockShared, UnlockExclusive:
		return true
	}
	return false
}

// NeedsResource reports whether an operation of this kind must name a resource.
func (k Kind) NeedsResource() bool {
	switch k {
	case Commit, Abort, Unknown:
		return false
	}
	return true
}

// Operation is a single entry of an operation log or of a scheduler history.
// Resource is empty for Commit, Abort and Unknown.
type Operation struct {
	Kind     Kind
	Txn      primitives.TransactionID
	Resource primitives.ResourceID
}

func NewRead(txn primitives.TransactionID, res primitives.ResourceID) Operation {
	return Operation{Kind: Read, Txn: txn, Resource: res}
}

func NewWrite(txn primitives.TransactionID, res primitives.ResourceID) Operation {
	return Operation{Kind: Write, Txn: txn, Resource: res}
}

func NewLockShared(txn primitives.TransactionID, res primitives.ResourceID) Operation {
	return Operation{Kind: LockShared, Txn: txn, Resource: res}
}

func NewLockExclusive(txn primitives.TransactionID, res primitives.ResourceID) Operation {
	return Operation{Kind: LockExclusive, Txn: txn, Resource: res}
}

func NewUnlockShared(txn primitives.TransactionID, res primitives.ResourceID) Operation {
	return Operation{Kind: UnlockShared, Txn: txn, Resource: res}
}

func NewUnlockExclusive(txn primitives.TransactionID, res primitives.ResourceID) Operation {
	return Operation{Kind: UnlockExclusive, Txn: txn, Resource: res}
}

func NewCommit(txn primitives.TransactionID) Operation {
	return Operation{Kind: Commit, Txn: txn}
}

func NewAbort(txn primitives.TransactionID) Operation {
	return Operation{Kind: Abort, Txn: txn}
}

// NewUnknown returns the discard marker produced for unrecognised log commands.
func NewUnknown() Operation {
	return Operation{Kind: Unknown}
}

// String renders the operation in log notation, e.g. "r1(x)", "lx2(y)", "c1".
func (o Operation) String() string {
	if o.Kind == Unknown {
		return "?"
	}
	if o.Resource.IsEmpty() {
		return fmt.Sprintf("%s%d", o.Kind.Command(), uint32(o.Txn))
	}
	return fmt.Sprintf("%s%d(%s)", o.Kind.Command(), uint32(o.Txn), o.Resource)
}

// Terminates reports whether the operation ends its transaction.
func (o Operation) Terminates() bool {
	return o.Kind == Commit || o.Kind == Abort
}
