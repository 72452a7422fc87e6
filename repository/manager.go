package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-arena-auth"
)

// Manager exposes all repositories sharing one database
type Manager struct {
	db       *bun.DB
	players  *Players
	tokens   *Tokens
	messages *Messages
}

func NewManager(db *bun.DB) *Manager {
	return &Manager{
		db:       db,
		players:  NewPlayersRepository(db),
		tokens:   NewTokensRepository(db),
		messages: NewMessagesRepository(db),
	}
}

func (m *Manager) Players() *Players {
	return m.players
}

func (m *Manager) Tokens() *Tokens {
	return m.tokens
}

func (m *Manager) Messages() *Messages {
	return m.messages
}

func (m *Manager) DB() *bun.DB {
	return m.db
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository manager needs a database")
	}

	if m.players == nil || m.tokens == nil || m.messages == nil {
		return errors.New("repository manager stores should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// Migrate creates the schema
func (m *Manager) Migrate(ctx context.Context) error {
	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return CreateSchema(ctx, tx)
	})
}

var _ auth.OwnerLookup = (*Players)(nil)
