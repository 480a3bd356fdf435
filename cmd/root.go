package cmd

import (
	"github.com/spf13/cobra"
	"github.com/stratastor/tether/cmd/config"
	"github.com/stratastor/tether/cmd/health"
	"github.com/stratastor/tether/cmd/logs"
	"github.com/stratastor/tether/cmd/stats"
	"github.com/stratastor/tether/cmd/status"
	"github.com/stratastor/tether/cmd/version"
	"github.com/stratastor/tether/cmd/watch"
	tcfg "github.com/stratastor/tether/config"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tether",
		Short: "Tether: resilient backend connectivity agent",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			tcfg.LoadConfig(configPath)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(watch.NewWatchCmd())
	rootCmd.AddCommand(health.NewHealthCmd())
	rootCmd.AddCommand(stats.NewStatsCmd())
	rootCmd.AddCommand(status.NewStatusCmd())
	rootCmd.AddCommand(logs.NewLogsCmd())
	rootCmd.AddCommand(config.NewConfigCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return rootCmd
}
