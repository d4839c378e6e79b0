package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"twopl/pkg/oplog"
)

func newParseCommand(cfg *globalConfig, stdin io.Reader, stdout io.Writer) *cobra.Command {
	var inline string

	cmd := &cobra.Command{
		Use:   "parse [files...]",
		Short: "Check operation logs and print them in normalized form.",
		Long: `parse reads each operation log and prints it back one log per line,
with whitespace and empty records removed and entries with unknown
commands dropped. It fails on the first malformed record.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := loadSources(inline, args, stdin)
			if err != nil {
				return err
			}

			for _, src := range sources {
				ops, err := src.parse(cfg.delimiter)
				if err != nil {
					return err
				}
				line := oplog.Format(ops, cfg.delimiter)
				if len(sources) > 1 {
					line = src.name + ": " + line
				}
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inline, "log", "l", "", "Operation log given inline.")
	return cmd
}
