package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/apptrail/internal/cli"
	"github.com/aretw0/apptrail/internal/presentation/graph"
	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/spf13/cobra"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <workflow-file>",
	Short: "Validate a workflow file and print it in canonical form",
	Long:  `Parses a workflow (text or .json) and prints it back as text, as JSON with --json
or as a Mermaid flowchart with --mermaid.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		asMermaid, _ := cmd.Flags().GetBool("mermaid")

		wf, err := cli.LoadWorkflow(args[0])
		if err != nil {
			return err
		}
		if asMermaid {
			_, err := fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid([]workflow.Workflow{wf}, nil))
			return err
		}
		if asJSON {
			data, err := json.MarshalIndent(wf, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		text, err := dsl.Format(wf)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(fmtCmd)
	fmtCmd.Flags().Bool("json", false, "Print the workflow as JSON")
	fmtCmd.Flags().Bool("mermaid", false, "Print the workflow as a Mermaid flowchart")
}
