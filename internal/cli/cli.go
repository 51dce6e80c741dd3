// Package cli wires configuration, logging and the pipeline into the
// tracecmp command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tracecmp/internal/clients/git"
	"tracecmp/internal/clients/jaeger"
	"tracecmp/internal/config"
	"tracecmp/internal/logging"
	"tracecmp/internal/metrics"
	"tracecmp/internal/orchestrator"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Options injects the process streams and, in tests, the collaborators that
// would otherwise talk to Jaeger and git.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer

	// Source replaces the Jaeger HTTP client when set.
	Source orchestrator.TraceSource
	// Resolver replaces `git rev-parse` when set.
	Resolver git.Resolver
}

// exitError carries a process exit code out of a command. A nil err means the
// message was already written.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: ExitUsage, err: err}
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	opts    Options
	v       *viper.Viper
	cfgFile string

	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	orch    *orchestrator.Orchestrator
}

// Execute runs the command line in args and returns the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	a := &app{opts: opts, v: config.NewViper()}
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintf(opts.Stderr, "Error: %v\n", exitErr.err)
		}
		if exitErr.code == ExitUsage {
			fmt.Fprintln(opts.Stderr, root.UsageString())
		}
		return exitErr.code
	}

	// Cobra's own failures: unknown command, bad flag syntax, missing required flag.
	fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
	return ExitUsage
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracecmp",
		Short: "Summarize and compare Jaeger trace latency per build",
		Long: `tracecmp fetches recent traces for a service from the Jaeger query API,
selects the ones emitted by a given commit, tag or version, and prints
per-operation latency tables in Markdown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return usageError(errors.New("a subcommand is required"))
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: tracecmp.yaml in ., ./config or $HOME/.config/tracecmp)")
	flags.String("jaeger", "http://localhost:16686", "Jaeger query base URL")
	flags.String("service", "opz-e2e", "service name to query")
	flags.Int("limit", 200, "maximum number of traces to fetch")
	flags.String("timeout", "", "HTTP timeout for the Jaeger query (Go duration, empty for none)")
	flags.Int("samples", 1, "latest traces per operation to aggregate")
	flags.String("status", "all", "trace status filter: all, ok or error")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("metrics-textfile", "", "write run metrics to this file in Prometheus text format")

	bindFlags(a.v, flags, map[string]string{
		"jaeger.url":       "jaeger",
		"jaeger.service":   "service",
		"jaeger.limit":     "limit",
		"jaeger.timeout":   "timeout",
		"report.samples":   "samples",
		"report.status":    "status",
		"app.log_level":    "log-level",
		"app.log_format":   "log-format",
		"metrics.textfile": "metrics-textfile",
	})

	root.AddCommand(a.newReportCmd(), a.newCompareCmd(), a.newServeCmd())
	return root
}

// bindFlags maps config keys to flag names on v.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		// Only fails for a nil flag, which would be a typo in the table above.
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %q: %v", name, err))
		}
	}
}

// setup loads configuration and builds the pipeline for this invocation.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return usageError(err)
	}
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}
	a.cfg = cfg

	a.logger = logging.New(cfg.App.LogLevel, cfg.App.LogFormat, a.opts.Stderr).
		With("run_id", uuid.NewString())
	a.metrics = metrics.New()

	source := a.opts.Source
	if source == nil {
		source = jaeger.NewClient(cfg.Jaeger.URL, cfg.Jaeger.GetTimeoutDuration(), a.logger)
	}
	resolver := a.opts.Resolver
	if resolver == nil {
		resolver = git.NewCLIResolver("", a.logger)
	}
	a.orch = orchestrator.New(source, resolver, a.metrics, a.logger)

	a.logger.Debug("Configuration loaded",
		"jaeger", cfg.Jaeger.URL,
		"service", cfg.Jaeger.Service,
		"limit", cfg.Jaeger.Limit,
		"samples", cfg.Report.Samples,
		"status", cfg.Report.Status,
		"config_file", a.v.ConfigFileUsed(),
	)
	return nil
}

// finish writes the metrics textfile when configured. A write failure is
// logged and does not change the exit code.
func (a *app) finish() {
	path := a.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		a.logger.Warn("Failed to export metrics", "path", path, "error", err)
		return
	}
	a.logger.Debug("Metrics exported", "path", path)
}

// pipelineError turns an orchestrator failure into exit code 1 after printing
// the diagnostic once.
func (a *app) pipelineError(err error) error {
	var fetchErr *orchestrator.FetchError
	if errors.As(err, &fetchErr) {
		fmt.Fprintf(a.opts.Stderr, "Failed to fetch traces from Jaeger: %v\n", fetchErr)
		return &exitError{code: ExitFailure}
	}
	return &exitError{code: ExitFailure, err: err}
}
