package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the arena CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arena",
		Short: "Arena - authenticated lobby and matchmaking server",
		Long: `Arena serves player accounts, token based sessions and the realtime
lobby where online players see each other and challenge one another.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewRevokeCmd())

	return cmd
}
