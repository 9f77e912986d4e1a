package main

import (
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/config"
)

func newRootCommand() *cobra.Command {
	var jsonFlag bool

	rootCmd := &cobra.Command{
		Use:           "heimdex-editor",
		Short:         "Timeline document engine and local editing service",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Write JSON even when stdout is a terminal")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newPreviewCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newExportCommand())

	return rootCmd
}
