package main

import (
	"fmt"
	"os"

	"github.com/aretw0/apptrail/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apptrail",
	Short: "apptrail replays and discovers user journeys through form-based applications",
	Long: `apptrail drives scripted workflows (menus, case lists, searches and forms)
against a remote application and checks expectations along the way.

Connection details come from apptrail.yaml. Secrets are read from
APPTRAIL_PASSWORD, APPTRAIL_TOKEN and APPTRAIL_HMAC_KEY.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Profile file (default ./apptrail.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}

// setup loads the profile named by the persistent flags.
func setup(cmd *cobra.Command) (*cli.Env, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	format, _ := cmd.Flags().GetString("log-format")
	return cli.Setup(path, debug, format)
}
