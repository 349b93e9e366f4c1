package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/apptrail/internal/cli"
	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/traffic"
	"github.com/spf13/cobra"
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <file.har>",
	Short: "Rebuild a workflow from recorded browser traffic",
	Long: `Reads a HAR export of a session with the application and prints the
workflow that reproduces it. Only POST requests to the session endpoints are
considered; everything before the first application start is ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		asJSON, _ := cmd.Flags().GetBool("json")
		save, _ := cmd.Flags().GetString("save")

		entries, err := traffic.LoadHAR(args[0])
		if err != nil {
			return err
		}
		res, err := traffic.Reconstruct(entries, traffic.WithLogger(env.Logger))
		if err != nil {
			return err
		}
		cli.PrintSystemMessage(cmd.ErrOrStderr(), "Domain %s, app %s at %s", res.Domain, res.AppID, res.BaseURL)

		if save != "" {
			store, err := env.Store(cmd.Context())
			if err != nil {
				return err
			}
			rec := &ports.StoredWorkflow{ID: save, Name: save, Workflow: res.Workflow, UpdatedAt: time.Now().UTC()}
			if err := store.Save(cmd.Context(), rec); err != nil {
				return err
			}
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Saved workflow '%s'", save)
		}

		if asJSON {
			data, err := json.MarshalIndent(res.Workflow, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		text, err := dsl.Format(res.Workflow)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(reconstructCmd)

	reconstructCmd.Flags().Bool("json", false, "Print the workflow as JSON")
	reconstructCmd.Flags().String("save", "", "Store the workflow under this id")
}
