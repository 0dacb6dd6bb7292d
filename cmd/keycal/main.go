package main

import (
	"os"

	"github.com/spf13/cobra"

	"keycal/cmd/keycal/commands"
	appLog "keycal/internal/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "keycal",
		Short:        "keycal calendar server",
		Long:         `keycal keeps a weekly calendar with category goals, ICS subscriptions and drag-to-reschedule.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "/etc/keycal/config.yaml", "Path to config file")

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewAgendaCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		appLog.Error("command failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}
