package cli

import (
	"context"
	"io"

	"twopl/pkg/concurrency/scheduler"
)

// SetViewer replaces the interactive viewer and returns a func restoring it.
func SetViewer(fn func(ctx context.Context, name string, res *scheduler.Result, in io.Reader, out io.Writer) error) func() {
	prev := viewer
	viewer = fn
	return func() { viewer = prev }
}
