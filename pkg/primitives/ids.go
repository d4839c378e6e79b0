package primitives

import (
	"fmt"
	"strconv"
)

// TransactionID identifies a transaction within one simulated run.
// IDs come from the operation log and are never reused inside a run.
type TransactionID uint32

// ResourceID names a lockable data item. The empty ResourceID is reserved
// for operations that carry no resource, such as commit and abort.
type ResourceID string

// NoResource is the ResourceID carried by commit and abort.
const NoResource ResourceID = ""

// ParseTransactionID converts the decimal text of a log record into a TransactionID.
func ParseTransactionID(s string) (TransactionID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return TransactionID(v), nil
}

// Int returns the ID as an int, for structured log attributes.
func (t TransactionID) Int() int {
	return int(t)
}

// String returns a string representation of the TransactionID.
func (t TransactionID) String() string {
	return fmt.Sprintf("T%d", uint32(t))
}

// IsEmpty reports whether r is the reserved no-resource value.
func (r ResourceID) IsEmpty() bool {
	return r == NoResource
}

func (r ResourceID) String() string {
	return string(r)
}
