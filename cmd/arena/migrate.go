package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-arena-auth/repository"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			db, err := repository.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.NewManager(db).Migrate(cmd.Context()); err != nil {
				return err
			}

			cmd.Println("schema is up to date")
			return nil
		},
	}

	bindDatabaseFlags(cmd.Flags())
	return cmd
}
