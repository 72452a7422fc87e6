package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-arena-auth"
)

// Messages is the bun backed auth.MessageStore
type Messages struct {
	db bun.IDB
}

var _ auth.MessageStore = (*Messages)(nil)

func NewMessagesRepository(db bun.IDB) *Messages {
	return &Messages{db: db}
}

func (m *Messages) Save(ctx context.Context, msg *auth.ChatMessage) (*auth.ChatMessage, error) {
	record := *msg
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		now := time.Now().UTC()
		record.CreatedAt = &now
	}

	if _, err := m.db.NewInsert().Model(&record).Exec(ctx); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns the newest messages first
func (m *Messages) List(ctx context.Context, amount, skip int) ([]*auth.ChatMessage, error) {
	records := []*auth.ChatMessage{}
	err := m.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(amount).
		Offset(skip).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
