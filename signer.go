package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Signer produces and verifies signed tokens for a given secret
type Signer interface {
	Sign(claims *TokenClaims, secret []byte) (string, error)
	Verify(token string, secret []byte) (*TokenClaims, error)
}

// TokenClaims are the JWT claims of every token kind
type TokenClaims struct {
	jwt.RegisteredClaims
	PlayerID string `json:"id"`
	Nickname string `json:"nickname,omitempty"`
}

// Payload strips registered claims
func (c *TokenClaims) Payload() *TokenPayload {
	return &TokenPayload{ID: c.PlayerID, Nickname: c.Nickname}
}

// JWTSigner signs HS256 tokens
type JWTSigner struct {
	issuer string
	now    func() time.Time
}

// NewJWTSigner creates a signer, now defaults to time.Now
func NewJWTSigner(issuer string, now func() time.Time) *JWTSigner {
	if now == nil {
		now = time.Now
	}
	return &JWTSigner{issuer: issuer, now: now}
}

// newClaims builds claims for payload valid for ttl from now. Every token
// gets a random jti so two tokens minted in the same second differ.
func newClaims(issuer string, payload TokenPayload, now time.Time, ttl time.Duration) *TokenClaims {
	return &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   payload.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		PlayerID: payload.ID,
		Nickname: payload.Nickname,
	}
}

func (s *JWTSigner) Sign(claims *TokenClaims, secret []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry. The returned error is the
// raw jwt error, callers decide how to surface it.
func (s *JWTSigner) Verify(tokenString string, secret []byte) (*TokenClaims, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.PlayerID == "" {
		return nil, fmt.Errorf("unable to decode token claims")
	}
	return claims, nil
}
