package cli

import (
	"fmt"
	"io"
	"os"

	"twopl/pkg/dberror"
	"twopl/pkg/operation"
	"twopl/pkg/oplog"
)

// source is one operation log to process.
type source struct {
	name string
	text string
	// fromStdin is set when the log was read from standard input, which is
	// then drained.
	fromStdin bool
}

// loadSources collects the inline log and every named file. "-" reads stdin.
// Names are made unique so each source can label its own metrics.
func loadSources(inline string, args []string, stdin io.Reader) ([]source, error) {
	var sources []source
	if inline != "" {
		sources = append(sources, source{name: "inline", text: inline})
	}

	for _, arg := range args {
		var (
			data []byte
			err  error
			src  = source{name: arg, fromStdin: arg == "-"}
		)
		if src.fromStdin {
			src.name = "stdin"
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(arg)
		}
		if err != nil {
			return nil, dberror.Wrap(err, dberror.CodeReadInput, "LoadInput", "CLI")
		}
		src.text = string(data)
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return nil, dberror.New(dberror.ErrCategoryUser, dberror.CodeMissingInput, "no operation log given").
			WithHint("pass one or more files, '-' for stdin, or --log 'r1(x)-c1'").
			WithContext("LoadInput", "CLI")
	}

	uniqueNames(sources)
	return sources, nil
}

// uniqueNames suffixes repeated names with #2, #3 and so on, skipping any
// suffix that is already taken by another source.
func uniqueNames(sources []source) {
	used := make(map[string]bool, len(sources))
	for _, src := range sources {
		used[src.name] = true
	}

	seen := make(map[string]bool, len(sources))
	for i := range sources {
		base := sources[i].name
		if !seen[base] {
			seen[base] = true
			continue
		}
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s#%d", base, n)
		}
		used[name] = true
		seen[name] = true
		sources[i].name = name
	}
}

func (s source) parse(delimiter string) ([]operation.Operation, error) {
	ops, err := oplog.NewParser(delimiter).Parse(s.text)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeMalformedEntry, "Parse", s.name)
	}
	return ops, nil
}
