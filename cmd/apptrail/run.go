package main

import (
	"context"
	"errors"
	"os"

	"github.com/aretw0/apptrail"
	"github.com/aretw0/apptrail/internal/cli"
	"github.com/aretw0/apptrail/internal/presentation/tui"
	"github.com/aretw0/apptrail/pkg/traffic"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [workflow-file]",
	Short: "Run a workflow against the application",
	Long: `Runs a workflow from a file (text or .json) or from the workflow store (--id).
The run stops at the first failing step or expectation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		id, _ := cmd.Flags().GetString("id")
		mockFile, _ := cmd.Flags().GetString("mock")
		record, _ := cmd.Flags().GetString("record")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		quiet, _ := cmd.Flags().GetBool("quiet")
		if cmd.Flags().Changed("form-policy") {
			env.Profile.FormPolicy, _ = cmd.Flags().GetString("form-policy")
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		var path string
		if len(args) > 0 {
			path = args[0]
		}
		name, wf, err := cli.ResolveWorkflow(ctx, env, path, id)
		if err != nil {
			return err
		}
		// Opening the store first lets a redis backend provide the user lock.
		if _, err := env.Store(ctx); err != nil {
			return err
		}

		ch, target, err := env.Channel(mockFile)
		if err != nil {
			return err
		}
		var rec *traffic.Recorder
		if record != "" {
			rec = traffic.NewRecorder(ch, target)
			ch = rec
		}

		stop := serveMetrics(env, metricsAddr)
		defer stop()

		if !quiet && tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(cmd.OutOrStdout(), apptrail.Version)
		}

		sess := env.Session(ch)
		runErr := env.Runner().Run(ctx, sess, wf)
		if !quiet {
			if err := tui.Print(cmd.OutOrStdout(), tui.RunReport(name, sess.Log(), runErr)); err != nil {
				return err
			}
		}
		if rec != nil {
			if err := writeHAR(record, rec.Entries()); err != nil {
				return err
			}
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Recorded %d exchanges to %s", len(rec.Entries()), record)
		}
		if errors.Is(runErr, context.Canceled) && ctx.Signal() != nil {
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Interrupted by %v", ctx.Signal())
		}
		return runErr
	},
}

func writeHAR(path string, entries []traffic.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := traffic.WriteHAR(f, entries, "apptrail "+apptrail.Version); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("id", "", "Run a stored workflow by id")
	runCmd.Flags().String("mock", "", "Run against an in-process mock application defined in this YAML file")
	runCmd.Flags().String("record", "", "Write the exchanged traffic to this HAR file")
	runCmd.Flags().String("form-policy", "full", "Form handling: full, no_submit or ignore")
	runCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address while running")
	runCmd.Flags().BoolP("quiet", "q", false, "Only report failures")
}
