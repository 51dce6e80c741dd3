package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracecmp/internal/orchestrator"
	"tracecmp/internal/output"
	"tracecmp/internal/server"
)

func (a *app) newReportCmd() *cobra.Command {
	var commit string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Per-operation latency for one commit, tag or version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.finish()

			res, err := a.orch.Report(cmd.Context(), orchestrator.ReportQuery{
				Service:  a.cfg.Jaeger.Service,
				Limit:    a.cfg.Jaeger.Limit,
				Selector: commit,
				Samples:  a.cfg.Report.Samples,
				Status:   a.cfg.Report.StatusFilter(),
			})
			if err != nil {
				return a.pipelineError(err)
			}

			fmt.Fprint(a.opts.Stdout, output.Report(res))
			if res.Empty() {
				return &exitError{code: ExitFailure}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&commit, "commit", "", "commit hash, tag or version to report on")
	_ = cmd.MarkFlagRequired("commit")
	return cmd
}

func (a *app) newCompareCmd() *cobra.Command {
	var base, head string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare per-operation latency between two builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.finish()

			res, err := a.orch.Compare(cmd.Context(), orchestrator.CompareQuery{
				Service: a.cfg.Jaeger.Service,
				Limit:   a.cfg.Jaeger.Limit,
				Base:    base,
				Head:    head,
				Samples: a.cfg.Report.Samples,
				Status:  a.cfg.Report.StatusFilter(),
			})
			if err != nil {
				return a.pipelineError(err)
			}

			fmt.Fprint(a.opts.Stdout, output.Comparison(res))
			if res.Empty() {
				return &exitError{code: ExitFailure}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "baseline commit hash, tag or version")
	cmd.Flags().StringVar(&head, "head", "", "candidate commit hash, tag or version")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("head")
	return cmd
}

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports and comparisons over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handler := server.NewHandler(a.cfg, a.orch, a.metrics, a.logger)
			srv := server.New(a.cfg.Server.Addr(), handler, a.logger)

			if err := srv.Run(cmd.Context(), nil); err != nil {
				return &exitError{code: ExitFailure, err: err}
			}
			return nil
		},
	}

	cmd.Flags().String("host", "127.0.0.1", "listen host")
	cmd.Flags().Int("port", 8080, "listen port")
	bindFlags(a.v, cmd.Flags(), map[string]string{
		"server.host": "host",
		"server.port": "port",
	})
	return cmd
}
