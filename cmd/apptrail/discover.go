package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/apptrail/internal/cli"
	"github.com/aretw0/apptrail/internal/presentation/graph"
	"github.com/aretw0/apptrail/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Explore the application and print every workflow found",
	Long: `Walks every menu, case list and form reachable from the root menu and
returns one workflow per path to a leaf screen. Forms are filled with
placeholder answers and submitted unless --form-policy says otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		mockFile, _ := cmd.Flags().GetString("mock")
		save, _ := cmd.Flags().GetString("save")
		asJSON, _ := cmd.Flags().GetBool("json")
		asMermaid, _ := cmd.Flags().GetBool("mermaid")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		if cmd.Flags().Changed("parallelism") {
			env.Profile.Discovery.Parallelism, _ = cmd.Flags().GetInt("parallelism")
		}
		if cmd.Flags().Changed("max-depth") {
			env.Profile.Discovery.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
		}
		if cmd.Flags().Changed("form-policy") {
			env.Profile.FormPolicy, _ = cmd.Flags().GetString("form-policy")
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		store, err := env.Store(ctx)
		if err != nil {
			return err
		}
		ch, _, err := env.Channel(mockFile)
		if err != nil {
			return err
		}

		stop := serveMetrics(env, metricsAddr)
		defer stop()

		wfs, err := env.Discovery(env.Runner()).Discover(ctx, env.Session(ch))
		if err != nil {
			return err
		}

		if save != "" {
			ids, err := cli.SaveAll(ctx, store, save, wfs)
			if err != nil {
				return err
			}
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Saved %d workflows (%s..%s)", len(ids), first(ids), last(ids))
		}

		if asMermaid {
			_, err := fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(wfs, nil))
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(wfs)
		}
		report, err := tui.DiscoveryReport(wfs)
		if err != nil {
			return err
		}
		return tui.Print(cmd.OutOrStdout(), report)
	},
}

func first(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func last(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().String("mock", "", "Explore an in-process mock application defined in this YAML file")
	discoverCmd.Flags().String("save", "", "Store the workflows as <prefix>-001, <prefix>-002, ...")
	discoverCmd.Flags().Bool("json", false, "Print the workflows as JSON")
	discoverCmd.Flags().Bool("mermaid", false, "Print the navigation tree as a Mermaid flowchart")
	discoverCmd.Flags().IntP("parallelism", "p", 1, "Number of branches explored concurrently")
	discoverCmd.Flags().Int("max-depth", 25, "Maximum number of steps in a workflow")
	discoverCmd.Flags().String("form-policy", "full", "Form handling: full, no_submit or ignore")
	discoverCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address while exploring")
}
