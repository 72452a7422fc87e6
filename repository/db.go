// Package repository holds the persistent stores behind the auth package:
// bun backed SQL stores (sqlite or postgres) and a redis credential store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goliatone/go-repository-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-arena-auth"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the SQL backend
type Config struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// Open connects to the configured database
func Open(cfg Config) (*bun.DB, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// CreateSchema creates the players, tokens and messages tables when missing
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*auth.Player)(nil),
		(*auth.TokenRecord)(nil),
		(*auth.ChatMessage)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*auth.TokenRecord)(nil), "tokens_owner_id_idx", "owner_id"},
		{(*auth.TokenRecord)(nil), "tokens_expires_at_idx", "expires_at"},
		{(*auth.ChatMessage)(nil), "messages_created_at_idx", "created_at"},
	}

	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	return nil
}

func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}
