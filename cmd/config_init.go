package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/linearmcp/internal/config"
)

var configInitCmd = &cobra.Command{
	Use:   "config:init",
	Short: "Write a starter config file",
	Long: `Write a commented starter config to --config, or .linearmcp/config.yaml
when no config file is in use. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configWritePath()
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configInitCmd)
}
