package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"twopl/pkg/concurrency/scheduler"
	"twopl/pkg/dberror"
	"twopl/pkg/ui"
)

// viewer shows a finished run interactively. A nil reader makes it read keys
// from the terminal. Tests replace it.
var viewer = ui.Run

func newStepCommand(cfg *globalConfig, stdin io.Reader, stdout io.Writer) *cobra.Command {
	var inline string

	cmd := &cobra.Command{
		Use:   "step [file]",
		Short: "Step through the lock table and wait queue of one log.",
		Long: `step schedules a single operation log while recording the lock table
and wait queue after every input operation, then opens a terminal viewer
to move back and forth between those snapshots.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := loadSources(inline, args, stdin)
			if err != nil {
				return err
			}
			if len(sources) > 1 {
				return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidConfig, "step takes a single log").
					WithHint("pass either --log or one file").
					WithContext("Step", "CLI")
			}
			src := sources[0]

			ops, err := src.parse(cfg.delimiter)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			res, err := scheduler.NewScheduler(scheduler.Options{RecordSnapshots: true}).Run(ctx, ops)
			if err != nil {
				return err
			}
			keys := stdin
			if src.fromStdin {
				keys = nil
			}
			return viewer(ctx, src.name, res, keys, stdout)
		},
	}

	cmd.Flags().StringVarP(&inline, "log", "l", "", "Operation log given inline.")
	return cmd
}
