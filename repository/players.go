package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-arena-auth"
)

var UpdatePlayerPasswordSQL = `UPDATE "players" AS "ply"
SET
	"password_hash" = ?,
	"updated_at" = ?
WHERE
	"ply"."id" = ?
RETURNING *;`

// Players is the bun backed auth.PlayerStore
type Players struct {
	repository.Repository[*auth.Player]
	db *bun.DB
}

var _ auth.PlayerStore = (*Players)(nil)

func NewPlayersRepository(db *bun.DB) *Players {
	repo := repository.NewRepository[*auth.Player](db, repository.ModelHandlers[*auth.Player]{
		NewRecord: func() *auth.Player { return &auth.Player{} },
		GetID: func(p *auth.Player) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *auth.Player, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &Players{Repository: repo, db: db}
}

// Create inserts a player, usernames and nicknames are unique
func (p *Players) Create(ctx context.Context, player *auth.Player) (*auth.Player, error) {
	var created *auth.Player
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := p.findBy(ctx, tx, "username", auth.NormalizeUsername(player.Username)); err == nil {
			return auth.ErrUsernameTaken
		} else if !auth.IsPlayerNotFound(err) {
			return err
		}
		if _, err := p.findBy(ctx, tx, "nickname", player.Nickname); err == nil {
			return auth.ErrNicknameTaken
		} else if !auth.IsPlayerNotFound(err) {
			return err
		}

		record := *player
		record.Username = auth.NormalizeUsername(record.Username)
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		now := time.Now().UTC()
		record.CreatedAt = &now
		record.UpdatedAt = &now

		rec, err := p.Repository.CreateTx(ctx, tx, &record)
		if err != nil {
			if isUniqueViolation(err) {
				if strings.Contains(strings.ToLower(err.Error()), "nickname") {
					return auth.ErrNicknameTaken
				}
				return auth.ErrUsernameTaken
			}
			return err
		}
		created = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (p *Players) FindByID(ctx context.Context, id uuid.UUID) (*auth.Player, error) {
	return p.findBy(ctx, p.db, "id", id)
}

func (p *Players) FindByUsername(ctx context.Context, username string) (*auth.Player, error) {
	return p.findBy(ctx, p.db, "username", auth.NormalizeUsername(username))
}

func (p *Players) findBy(ctx context.Context, tx bun.IDB, column string, value any) (*auth.Player, error) {
	record := &auth.Player{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, auth.ErrPlayerNotFound
		}
		return nil, err
	}
	return record, nil
}

func (p *Players) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := p.Repository.RawTx(ctx, p.db, UpdatePlayerPasswordSQL, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if len(res) == 0 {
		return auth.ErrPlayerNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
