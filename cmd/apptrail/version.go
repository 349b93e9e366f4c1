package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/apptrail"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of apptrail",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "apptrail version %s\n", strings.TrimSpace(apptrail.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
