// Command dbgen is a thin run-control shim over internal/model (§6 Run
// control). It parses flags and a config file, builds a connection pair
// and a Model, and delegates everything else; no business logic lives
// here.
//
// Grounded on the teacher's cmd/bd root-command structure: a cobra root
// with subcommands that each build their dependencies and hand off
// immediately to an internal package.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbgen-run/dbgen/internal/config"
	"github.com/dbgen-run/dbgen/internal/model"
	"github.com/dbgen-run/dbgen/internal/sqlconn"
	"github.com/dbgen-run/dbgen/models"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if exitErr, ok := err.(exitCodeError); ok {
			return int(exitErr)
		}
		fmt.Fprintln(os.Stderr, err)
		return int(model.ExitFailure)
	}
	return int(model.ExitSuccess)
}

// exitCodeError lets a subcommand propagate a specific process exit code
// without cobra printing a redundant error line for expected exits.
type exitCodeError model.ExitCode

func (e exitCodeError) Error() string { return fmt.Sprintf("exit code %d", int(e)) }

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "dbgen",
		Short: "Populate a relational database from declared entities and generators",
		// run prints non-exit-code errors itself.
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "dbgen.yaml", "path to config file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newDoctorCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var include, exclude []string
	var start, until string
	var nuke, retry, serial, progress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the declared generators in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader(*configPath)
			if err != nil {
				return exitCodeError(model.ExitConfig)
			}
			cfg := loader.Snapshot()

			m, err := models.Build()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return exitCodeError(model.ExitConfig)
			}
			mainConn, metaConn, closeFn, err := dial(cmd.Context(), cfg)
			if err != nil {
				return exitCodeError(model.ExitConfig)
			}
			defer closeFn()

			opts := model.RunOptions{
				Include:          firstNonEmpty(include, cfg.Include),
				Exclude:          firstNonEmpty(exclude, cfg.Exclude),
				Start:            start,
				Until:            until,
				Nuke:             nuke || cfg.Nuke,
				Retry:            retry || cfg.Retry,
				Serial:           serial,
				Progress:         progress || cfg.Progress,
				DefaultBatchSize: cfg.BatchSize,
			}

			summary, exit, err := m.Run(cmd.Context(), mainConn, metaConn, opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d completed, %d failed, %d skipped\n",
				summary.RunID, len(summary.Completed), len(summary.Failed), len(summary.Skipped))
			if exit != model.ExitSuccess {
				return exitCodeError(exit)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "generator names to include")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "generator names to exclude")
	cmd.Flags().StringVar(&start, "start", "", "first generator in the topological order to run")
	cmd.Flags().StringVar(&until, "until", "", "last generator in the topological order to run")
	cmd.Flags().BoolVar(&nuke, "nuke", false, "drop and recreate meta-tables before running")
	cmd.Flags().BoolVar(&retry, "retry", false, "bypass repeat suppression")
	cmd.Flags().BoolVar(&serial, "serial", false, "disable worker-pool parallelism")
	cmd.Flags().BoolVar(&progress, "progress", false, "emit a trace span per row")
	return cmd
}

func newDoctorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate config and connectivity without running any generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader(*configPath)
			if err != nil {
				return exitCodeError(model.ExitConfig)
			}
			cfg := loader.Snapshot()
			_, _, closeFn, err := dial(cmd.Context(), cfg)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return exitCodeError(model.ExitConfig)
			}
			closeFn()
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func dial(ctx context.Context, cfg config.Config) (sqlconn.Connection, sqlconn.Connection, func(), error) {
	poolSize := cfg.WorkerCap
	if poolSize <= 0 {
		poolSize = 4
	}

	mainPool, err := sqlconn.NewPgxPool(ctx, cfg.MainDSN, poolSize)
	if err != nil {
		return nil, nil, nil, err
	}
	mainConn, releaseMain, err := mainPool.Acquire(ctx)
	if err != nil {
		mainPool.Close()
		return nil, nil, nil, err
	}

	metaPool, err := sqlconn.NewPgxPool(ctx, cfg.MetaDSN, 2)
	if err != nil {
		releaseMain()
		mainPool.Close()
		return nil, nil, nil, err
	}
	metaConn, releaseMeta, err := metaPool.Acquire(ctx)
	if err != nil {
		releaseMain()
		mainPool.Close()
		metaPool.Close()
		return nil, nil, nil, err
	}

	closeFn := func() {
		releaseMeta()
		releaseMain()
		metaPool.Close()
		mainPool.Close()
	}
	return mainConn, metaConn, closeFn, nil
}

func firstNonEmpty(flag, configured []string) []string {
	if len(flag) > 0 {
		return flag
	}
	return configured
}
