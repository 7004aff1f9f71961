package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var profilesDir string
	var verbose bool

	ctx := newCommandContext(&profilesDir, &verbose)

	rootCmd := &cobra.Command{
		Use:   "linkagectl",
		Short: "Offline link detection utilities",
		Long: `linkagectl evaluates detection profiles without a running server:
validate profile documents, inspect factors and thresholds, and replay
candidate pools. Decisions use each profile's default thresholds; tenant
overrides live behind the server API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&profilesDir, "profiles-dir", "d", "", "Directory of operator profile documents loaded next to the builtins")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine activity to stderr")

	rootCmd.AddCommand(newProfileCommand(ctx))
	rootCmd.AddCommand(newClassifyCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))

	return rootCmd
}
