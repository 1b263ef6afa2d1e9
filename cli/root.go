package cli

import (
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "appforge",
		Short:        "AppForge server and tooling",
		Long:         "AppForge generates, previews and runs full-stack applications driven by an AI agent.",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "appforge.yaml", "Path to the configuration file")
	root.PersistentFlags().String("env-file", "", "Env file loaded before the configuration")
	root.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		NewServeCommand(),
		NewMigrateCommand(),
		NewVersionCommand(),
	)
	return root
}
