package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-arena-auth"
	"github.com/goliatone/go-arena-auth/repository"
)

// NewRevokeCmd creates the revoke subcommand.
func NewRevokeCmd() *cobra.Command {
	var playerID string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke every session and reset token of a player",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(playerID)
			if err != nil {
				return fmt.Errorf("invalid player id %q: %w", playerID, err)
			}

			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			db, err := repository.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			repos := repository.NewManager(db)

			var credentials auth.CredentialStore = repos.Tokens()
			if cfg.Store == storeRedis {
				redisTokens, err := repository.NewRedisTokens(cfg.Redis.URL)
				if err != nil {
					return err
				}
				defer redisTokens.Close()
				credentials = redisTokens
			}

			tokens := auth.NewTokenService(cfg.Auth, credentials, repos.Players(), auth.WithTokenLogger(auth.NopLogger()))

			n, err := tokens.RevokeAllFor(cmd.Context(), id)
			if err != nil {
				return err
			}

			cmd.Printf("revoked %d tokens of player %s\n", n, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&playerID, "player", "", "player id")
	_ = cmd.MarkFlagRequired("player")
	cmd.Flags().String("store", storeSQL, "credential store (sql or redis)")
	cmd.Flags().String("redis.url", "", "redis URL when store is redis")
	bindDatabaseFlags(cmd.Flags())
	return cmd
}
