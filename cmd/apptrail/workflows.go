package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/spf13/cobra"
)

var workflowsCmd = &cobra.Command{
	Use:     "workflows",
	Aliases: []string{"wf"},
	Short:   "Manage stored workflows",
	Long:    `List, show, and remove workflows kept in the configured store.`,
}

var workflowsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored workflows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		store, err := env.Store(cmd.Context())
		if err != nil {
			return err
		}
		ids, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing workflows: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No stored workflows found.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var workflowsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		asJSON, _ := cmd.Flags().GetBool("json")
		store, err := env.Store(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading workflow '%s': %w", args[0], err)
		}

		if asJSON {
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		text, err := dsl.Format(rec.Workflow)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	},
}

var workflowsRmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Remove one or more workflows",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		store, err := env.Store(cmd.Context())
		if err != nil {
			return err
		}
		var failed int
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed workflow '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d workflows could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workflowsCmd)
	workflowsCmd.AddCommand(workflowsLsCmd)
	workflowsCmd.AddCommand(workflowsShowCmd)
	workflowsCmd.AddCommand(workflowsRmCmd)

	workflowsShowCmd.Flags().Bool("json", false, "Print the stored record as JSON")
}
