package auth

import (
	"time"
)

// TokenKind selects secret, lifetime and persistence of a token
type TokenKind string

const (
	TokenKindAccess  TokenKind = "ACCESS"
	TokenKindSession TokenKind = "SESSION"
	TokenKindReset   TokenKind = "RESET"
)

const (
	AccessTokenTTL  = 10 * time.Minute
	SessionTokenTTL = 3 * 24 * time.Hour
	ResetTokenTTL   = time.Hour
)

type tokenPolicy struct {
	ttl       time.Duration
	persisted bool
	secret    func(Config) string
}

var tokenPolicies = map[TokenKind]tokenPolicy{
	TokenKindAccess: {
		ttl:    AccessTokenTTL,
		secret: func(c Config) string { return c.GetAccessTokenSecret() },
	},
	TokenKindSession: {
		ttl:       SessionTokenTTL,
		persisted: true,
		secret:    func(c Config) string { return c.GetSessionTokenSecret() },
	},
	TokenKindReset: {
		ttl:       ResetTokenTTL,
		persisted: true,
		secret:    func(c Config) string { return c.GetResetTokenSecret() },
	},
}

// Valid reports whether k is a known token kind
func (k TokenKind) Valid() bool {
	_, ok := tokenPolicies[k]
	return ok
}

// Persisted reports whether tokens of this kind are kept in the CredentialStore
func (k TokenKind) Persisted() bool {
	return tokenPolicies[k].persisted
}

// TTL returns the fixed lifetime of the kind
func (k TokenKind) TTL() time.Duration {
	return tokenPolicies[k].ttl
}

func (k TokenKind) String() string {
	return string(k)
}

// TokenPayload is what a token vouches for. SESSION and RESET tokens only
// carry the player id, ACCESS tokens add the nickname.
type TokenPayload struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname,omitempty"`
}

// TokenPair is handed out on login, register and refresh
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	SessionToken string `json:"-"`
}
