// Package cli holds the twopl command line: cobra commands whose flags can
// also be supplied through TWOPL_* environment variables or a TOML file.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"twopl/pkg/dberror"
	"twopl/pkg/logging"
	"twopl/pkg/oplog"
)

const envPrefix = "TWOPL"

// globalConfig holds the flags shared by every subcommand.
type globalConfig struct {
	configFile string
	logLevel   string
	logFormat  string
	logOutput  string
	delimiter  string
}

// NewRootCommand builds the twopl command tree writing to the given streams.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cfg := &globalConfig{}

	rc := &cobra.Command{
		Use:   "twopl",
		Short: "Simulate strict two-phase locking over an operation log.",
		Long: `twopl replays a log of transaction operations such as

    r1(x)-w2(y)-r2(x)-c1-c2

through a strict two-phase locking scheduler with shared and exclusive
locks, and prints the resulting history with the lock and unlock events
interleaved. Operations that cannot get their lock wait and are retried
whenever a transaction commits or aborts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if err := setAllConfig(v, cmd.Flags()); err != nil {
				return dberror.Wrap(err, dberror.CodeInvalidConfig, "Configure", "CLI")
			}
			return cfg.initLogging(stderr)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Close()
		},
	}

	flags := rc.PersistentFlags()
	flags.StringVarP(&cfg.configFile, "config", "c", "", "Configuration file to read from.")
	flags.StringVar(&cfg.logLevel, "log-level", "warn", "Log level: debug, info, warn or error.")
	flags.StringVar(&cfg.logFormat, "log-format", "text", "Log format: text or json.")
	flags.StringVar(&cfg.logOutput, "log-output", "", "Log file path. Logs go to stderr when empty.")
	flags.StringVarP(&cfg.delimiter, "delimiter", "d", oplog.DefaultDelimiter, "Separator between log records.")

	rc.AddCommand(newRunCommand(cfg, stdin, stdout, stderr))
	rc.AddCommand(newParseCommand(cfg, stdin, stdout))
	rc.AddCommand(newStepCommand(cfg, stdin, stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func (cfg *globalConfig) initLogging(stderr io.Writer) error {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidConfig, err.Error()).
			WithHint("use one of debug, info, warn, error").
			WithContext("Configure", "CLI")
	}

	format := strings.ToLower(cfg.logFormat)
	if format != "text" && format != "json" {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidConfig, "unknown log format").
			WithDetail("got %q", cfg.logFormat).
			WithHint("use text or json").
			WithContext("Configure", "CLI")
	}

	if cfg.delimiter == "" {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidConfig, "record delimiter must not be empty").
			WithContext("Configure", "CLI")
	}

	logCfg := logging.Config{Level: level, Format: format, OutputPath: cfg.logOutput}
	if cfg.logOutput == "" {
		logCfg.Writer = stderr
	}

	// A previous command in the same process may have left the logger set up.
	if err := logging.Close(); err != nil {
		return err
	}
	return logging.Init(logCfg)
}

// setAllConfig takes a FlagSet to be the definition of all configuration
// options, as well as their defaults. It then reads from the command line, the
// environment, and a config file (if specified), and applies the configuration
// in that priority order. Since each flag in the set holds a pointer to where
// its value is stored, setAllConfig modifies the config fields directly.
//
// Environment variables are capitalized flag names with dashes replaced by
// underscores, prefixed with TWOPL_.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}

		for _, key := range v.AllKeys() {
			if !validTags[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			// Flags given on the command line win.
			return
		}
		flagErr = f.Value.Set(v.GetString(f.Name))
	})
	return flagErr
}
