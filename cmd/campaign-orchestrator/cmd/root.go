package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/version"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "campaign-orchestrator",
	Short:   "Drive purple team campaigns and stream their lifecycle to SIEM webhooks",
	Version: version.Info(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")
}
