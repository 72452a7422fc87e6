package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-arena-auth"
)

// Tokens is the bun backed auth.CredentialStore. Each operation is a single
// statement.
type Tokens struct {
	db bun.IDB
}

var _ auth.CredentialStore = (*Tokens)(nil)

func NewTokensRepository(db bun.IDB) *Tokens {
	return &Tokens{db: db}
}

func (t *Tokens) FindByToken(ctx context.Context, token string) (*auth.TokenRecord, error) {
	record := &auth.TokenRecord{}
	err := t.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, auth.ErrTokenRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

func (t *Tokens) Insert(ctx context.Context, record *auth.TokenRecord) error {
	_, err := t.db.NewInsert().Model(record).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return auth.ErrTokenRecordExists
	}
	return err
}

func (t *Tokens) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res, err := t.db.NewDelete().
		Model((*auth.TokenRecord)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *Tokens) DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	res, err := t.db.NewDelete().
		Model((*auth.TokenRecord)(nil)).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// PurgeExpired removes records past their expiry. Expired tokens fail
// verification anyway, this only keeps the table small.
func (t *Tokens) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := t.db.NewDelete().
		Model((*auth.TokenRecord)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
