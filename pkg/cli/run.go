package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"twopl/pkg/concurrency/scheduler"
	"twopl/pkg/dberror"
	"twopl/pkg/logging"
	"twopl/pkg/render"
)

type runConfig struct {
	inline          string
	snapshots       bool
	styled          bool
	metricsFile     string
	starvationLimit int
	parallelism     int
}

// runOutcome is what one log produced.
type runOutcome struct {
	name    string
	result  *scheduler.Result
	starved []scheduler.Waiter
}

func newRunCommand(cfg *globalConfig, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rcfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Schedule operation logs and print the resulting histories.",
		Long: `run feeds every operation of each log through its own scheduler and
prints the final history, the operations still waiting at the end, and
any deadlock among them. Independent logs are scheduled in parallel.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := loadSources(rcfg.inline, args, stdin)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			reg := prometheus.NewRegistry()
			outcomes, err := runAll(ctx, sources, cfg.delimiter, rcfg, reg)
			if err != nil {
				return err
			}

			r := render.New(rcfg.styled, cfg.delimiter)
			for _, out := range outcomes {
				name := ""
				if len(outcomes) > 1 {
					name = out.name
				}
				fmt.Fprint(stdout, r.Report(name, out.result))
				reportWarnings(stderr, r, name, out)
			}

			if rcfg.metricsFile != "" {
				if err := prometheus.WriteToTextfile(rcfg.metricsFile, reg); err != nil {
					return dberror.Wrap(err, dberror.CodeMetricsExport, "WriteMetrics", "CLI")
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&rcfg.inline, "log", "l", "", "Operation log given inline.")
	flags.BoolVarP(&rcfg.snapshots, "snapshots", "s", false, "Print the lock table and wait queue after every input operation.")
	flags.BoolVar(&rcfg.styled, "styled", false, "Color the output.")
	flags.StringVar(&rcfg.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file.")
	flags.IntVar(&rcfg.starvationLimit, "starvation-limit", 0, "Warn about operations refused by at least this many retry passes. 0 disables.")
	flags.IntVarP(&rcfg.parallelism, "parallelism", "p", 4, "Maximum number of logs scheduled at once.")
	return cmd
}

// runAll schedules each source independently. Outcomes are returned in
// source order.
func runAll(ctx context.Context, sources []source, delimiter string, rcfg *runConfig, reg prometheus.Registerer) ([]runOutcome, error) {
	outcomes := make([]runOutcome, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	if rcfg.parallelism > 0 {
		g.SetLimit(rcfg.parallelism)
	}

	for i, src := range sources {
		g.Go(func() error {
			ops, err := src.parse(delimiter)
			if err != nil {
				logFailure(src.name, err)
				return err
			}

			metrics := scheduler.NewMetrics(prometheus.WrapRegistererWith(prometheus.Labels{"log": src.name}, reg))
			s := scheduler.NewScheduler(scheduler.Options{
				RecordSnapshots: rcfg.snapshots,
				Metrics:         metrics,
			})

			res, err := s.Run(ctx, ops)
			if err != nil {
				err = dberror.Wrap(err, dberror.CodeRunCancelled, "Run", src.name)
				logFailure(src.name, err)
				return err
			}

			outcomes[i] = runOutcome{name: src.name, result: res}
			if rcfg.starvationLimit > 0 {
				outcomes[i].starved = s.Starved(rcfg.starvationLimit)
			}

			logging.WithComponent("cli").Info("log scheduled",
				"log", src.name, "operations", len(ops), "pending", len(res.Pending))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func logFailure(name string, err error) {
	log := logging.WithError(err).With("component", "cli", "log", name)
	log.Error("log failed")

	var dbErr *dberror.DBError
	if errors.As(err, &dbErr) {
		log.Debug("log failure stack", "stack", dbErr.FormatStack())
	}
}

// reportWarnings writes the warnings of one outcome. name labels them the
// same way the report header does and is empty for a single log.
func reportWarnings(w io.Writer, r *render.Renderer, name string, out runOutcome) {
	prefix := "warning: "
	if name != "" {
		prefix += name + ": "
	}

	if out.result.Stalled() {
		fmt.Fprintf(w, "%s%d operation(s) still waiting at end of log\n", prefix, len(out.result.Pending))
	}
	if len(out.result.Deadlock) > 0 {
		fmt.Fprintf(w, "%sdeadlock among waiting transactions: %s\n", prefix, r.Cycle(out.result.Deadlock))
	}
	for _, waiter := range out.starved {
		fmt.Fprintf(w, "%s%s waiting since step %d, refused by %d retry passes\n",
			prefix, waiter.Op, waiter.EnqueuedAt, waiter.Attempts)
	}
}
