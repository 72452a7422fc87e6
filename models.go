package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Player is the player model
type Player struct {
	bun.BaseModel `bun:"table:players,alias:ply"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Nickname      string     `bun:"nickname,notnull,unique" json:"nickname"`
	Username      string     `bun:"username,notnull,unique" json:"username"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// TokenRecord is a persisted SESSION or RESET token. The token string is
// unique and belongs to exactly one owner.
type TokenRecord struct {
	bun.BaseModel `bun:"table:tokens,alias:tkn"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Token         string    `bun:"token,notnull,unique" json:"token"`
	Kind          TokenKind `bun:"kind,notnull" json:"kind"`
	OwnerID       uuid.UUID `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// Expired reports whether the record outlived its absolute expiry.
func (r *TokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// ChatMessage is a lobby chat line
type ChatMessage struct {
	bun.BaseModel `bun:"table:messages,alias:msg"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	PlayerID      uuid.UUID  `bun:"player_id,notnull,type:uuid" json:"player_id"`
	Content       string     `bun:"content,notnull" json:"content"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
