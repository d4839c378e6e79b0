// Package oplog reads and writes the textual operation log format:
//
//	r1(x)-w2[y]-c1-a2
//
// Each record is <command><transaction>[(<resource>) or [<resource>]].
// Records are separated by a delimiter ("-" by default) or by line breaks.
// Commands are r (read), w (write), c (commit) and a (abort); the synthetic
// history events ls, lx, us and ux are accepted too so a rendered history can
// be read back. Any other command parses to an Unknown operation. A '#'
// starts a comment running to the end of the line.
package oplog

import (
	"regexp"
	"strings"

	"twopl/pkg/dberror"
	"twopl/pkg/operation"
	"twopl/pkg/primitives"
)

// DefaultDelimiter separates records in a log.
const DefaultDelimiter = "-"

var recordPattern = regexp.MustCompile(
	`^(?P<command>[a-z]+)(?P<transaction>\d+)(?:\((?P<paren>[^()\[\]\s]+)\)|\[(?P<bracket>[^()\[\]\s]+)\])?$`)

var (
	commandIndex     = recordPattern.SubexpIndex("command")
	transactionIndex = recordPattern.SubexpIndex("transaction")
	parenIndex       = recordPattern.SubexpIndex("paren")
	bracketIndex     = recordPattern.SubexpIndex("bracket")
)

// Parser turns log text into operations.
type Parser struct {
	delimiter string
}

// NewParser creates a parser splitting records on delimiter.
// An empty delimiter selects DefaultDelimiter.
func NewParser(delimiter string) *Parser {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return &Parser{delimiter: delimiter}
}

// Parse converts text into operations. Comments, surrounding whitespace and
// empty records are skipped. A record that does not fit the grammar, or a read or
// write without a resource, fails the whole parse with MALFORMED_ENTRY.
func (p *Parser) Parse(text string) ([]operation.Operation, error) {
	var ops []operation.Operation
	position := 0

	for _, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, record := range strings.Split(line, p.delimiter) {
			record = strings.TrimSpace(record)
			if record == "" {
				continue
			}
			position++

			op, err := p.ParseRecord(record, position)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// ParseRecord parses a single trimmed record. position is the 1-based index
// used in error messages.
func (p *Parser) ParseRecord(record string, position int) (operation.Operation, error) {
	m := recordPattern.FindStringSubmatch(record)
	if m == nil {
		return operation.Operation{}, malformed(record, position, "expected <command><transaction>[(<resource>)]")
	}

	kind := operation.KindFromCommand(m[commandIndex])
	if kind == operation.Unknown {
		return operation.NewUnknown(), nil
	}

	txn, err := primitives.ParseTransactionID(m[transactionIndex])
	if err != nil {
		return operation.Operation{}, malformed(record, position, "transaction id out of range").WithCause(err)
	}

	res := primitives.ResourceID(m[parenIndex] + m[bracketIndex])
	if !kind.NeedsResource() {
		return operation.Operation{Kind: kind, Txn: txn}, nil
	}
	if res.IsEmpty() {
		return operation.Operation{}, malformed(record, position, kind.String()+" needs a resource")
	}
	return operation.Operation{Kind: kind, Txn: txn, Resource: res}, nil
}

func malformed(record string, position int, hint string) *dberror.DBError {
	return dberror.New(dberror.ErrCategoryUser, dberror.CodeMalformedEntry, "malformed log record").
		WithDetail("record %d: %q", position, record).
		WithHint(hint).
		WithContext("Parse", "OpLog")
}

// Format renders ops in log notation joined by delimiter. Unknown operations
// are skipped since they have no notation.
func Format(ops []operation.Operation, delimiter string) string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Kind == operation.Unknown {
			continue
		}
		parts = append(parts, op.String())
	}
	return strings.Join(parts, delimiter)
}
