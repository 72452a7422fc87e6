package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetAccessTokenSecret() string
	GetSessionTokenSecret() string
	GetResetTokenSecret() string
	GetIssuer() string
	GetSessionCookieName() string
}

// TokenValidator is the read side of TokenService used by the realtime
// admission handshake.
type TokenValidator interface {
	Validate(ctx context.Context, token string, kind TokenKind) (*TokenPayload, error)
}

// CredentialStore persists SESSION and RESET token records.
// FindByToken returns ErrTokenRecordNotFound when the token is unknown.
type CredentialStore interface {
	FindByToken(ctx context.Context, token string) (*TokenRecord, error)
	Insert(ctx context.Context, record *TokenRecord) error
	// DeleteByToken reports whether a record was removed.
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// OwnerLookup resolves token owners, returns ErrPlayerNotFound when the
// player no longer exists.
type OwnerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Player, error)
}

// PlayerStore ensure we have a store to retrieve players
type PlayerStore interface {
	OwnerLookup
	Create(ctx context.Context, player *Player) (*Player, error)
	FindByUsername(ctx context.Context, username string) (*Player, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// MessageStore keeps lobby chat history
type MessageStore interface {
	Save(ctx context.Context, msg *ChatMessage) (*ChatMessage, error)
	List(ctx context.Context, amount, skip int) ([]*ChatMessage, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] ARENA " + line(format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] ARENA " + line(format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] ARENA " + line(format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] ARENA " + line(format, args...))
}

// line renders printf style messages and falls back to key=value pairs
// when the message carries no verbs.
func line(format string, args ...any) string {
	var s string
	if strings.Contains(format, "%") {
		s = fmt.Sprintf(format, args...)
	} else {
		var b strings.Builder
		b.WriteString(format)
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			} else {
				fmt.Fprintf(&b, " %v", args[i])
			}
		}
		s = b.String()
	}
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// NewSlogLogger adapts a slog.Logger to Logger. Arguments are treated as
// key/value attributes.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// NopLogger discards everything, handy in tests.
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
