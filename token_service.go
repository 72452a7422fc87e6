package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues, validates, consumes and revokes tokens
type TokenService struct {
	cfg      Config
	signer   Signer
	store    CredentialStore
	owners   OwnerLookup
	logger   Logger
	metrics  *Metrics
	activity ActivitySink
	now      func() time.Time
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(s *TokenService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTokenMetrics(m *Metrics) TokenServiceOption {
	return func(s *TokenService) {
		s.metrics = m
	}
}

func WithTokenActivitySink(sink ActivitySink) TokenServiceOption {
	return func(s *TokenService) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithClock overrides time.Now for both issuance and verification
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSigner replaces the default HS256 signer
func WithSigner(signer Signer) TokenServiceOption {
	return func(s *TokenService) {
		if signer != nil {
			s.signer = signer
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, store CredentialStore, owners OwnerLookup, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		cfg:      cfg,
		store:    store,
		owners:   owners,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.signer == nil {
		s.signer = NewJWTSigner(cfg.GetIssuer(), s.now)
	}

	return s
}

// MaxAge is the lifetime of kind, used for cookie max-age
func (s *TokenService) MaxAge(kind TokenKind) time.Duration {
	return kind.TTL()
}

func (s *TokenService) secret(kind TokenKind) ([]byte, error) {
	p, ok := tokenPolicies[kind]
	if !ok {
		return nil, errors.New("unknown token kind", errors.CategoryBadInput).
			WithMetadata(map[string]any{"kind": kind})
	}
	secret := p.secret(s.cfg)
	if secret == "" {
		return nil, withMeta(ErrMissingSecret, map[string]any{"kind": kind})
	}
	return []byte(secret), nil
}

// Issue signs payload as a token of kind. SESSION and RESET tokens are
// persisted before they are returned, a failed insert aborts issuance.
func (s *TokenService) Issue(ctx context.Context, payload TokenPayload, kind TokenKind) (string, error) {
	secret, err := s.secret(kind)
	if err != nil {
		return "", err
	}

	if kind != TokenKindAccess {
		payload.Nickname = ""
	}

	now := s.now()
	claims := newClaims(s.cfg.GetIssuer(), payload, now, kind.TTL())

	token, err := s.signer.Sign(claims, secret)
	if err != nil {
		return "", err
	}

	if kind.Persisted() {
		ownerID, err := uuid.Parse(payload.ID)
		if err != nil {
			return "", errors.Wrap(err, errors.CategoryBadInput, "token owner must be a valid player id")
		}

		record := &TokenRecord{
			ID:        uuid.New(),
			Token:     token,
			Kind:      kind,
			OwnerID:   ownerID,
			CreatedAt: now,
			ExpiresAt: now.Add(kind.TTL()),
		}

		if err := s.store.Insert(ctx, record); err != nil {
			return "", errors.Wrap(err, errors.CategoryInternal, "failed to persist token record").
				WithMetadata(map[string]any{"kind": kind})
		}
	}

	s.metrics.TokenIssued(kind)
	return token, nil
}

// IssueSessionPair issues one ACCESS and one SESSION token for the player
func (s *TokenService) IssueSessionPair(ctx context.Context, id, nickname string) (*TokenPair, error) {
	access, err := s.Issue(ctx, TokenPayload{ID: id, Nickname: nickname}, TokenKindAccess)
	if err != nil {
		return nil, err
	}

	session, err := s.Issue(ctx, TokenPayload{ID: id}, TokenKindSession)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, SessionToken: session}, nil
}

// Validate checks token as a token of kind. ACCESS tokens are checked
// statelessly. SESSION and RESET tokens must also be present in the store.
// A persisted token missing from the store is treated as a replay: its
// owner, when recoverable, loses every persisted token.
func (s *TokenService) Validate(ctx context.Context, token string, kind TokenKind) (*TokenPayload, error) {
	secret, err := s.secret(kind)
	if err != nil {
		return nil, err
	}

	if token == "" {
		s.metrics.TokenValidated(kind, ValidationResultInvalid)
		return nil, ErrAuthenticationFailure
	}

	if !kind.Persisted() {
		claims, err := s.signer.Verify(token, secret)
		if err != nil {
			s.logger.Debug("token verification failed", "kind", kind, "error", err)
			s.metrics.TokenValidated(kind, ValidationResultInvalid)
			return nil, ErrAuthenticationFailure
		}
		s.metrics.TokenValidated(kind, ValidationResultOK)
		return claims.Payload(), nil
	}

	record, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if IsTokenRecordNotFound(err) {
			s.metrics.TokenValidated(kind, ValidationResultNotFound)
			s.detectReuse(ctx, token, kind, secret)
			return nil, ErrAuthenticationFailure
		}
		s.metrics.TokenValidated(kind, ValidationResultError)
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up token record").
			WithMetadata(map[string]any{"kind": kind})
	}

	claims, err := s.signer.Verify(token, secret)
	if err != nil {
		s.logger.Debug("token verification failed", "kind", kind, "error", err)
		s.metrics.TokenValidated(kind, ValidationResultInvalid)
		return nil, ErrAuthenticationFailure
	}

	if record.Kind != kind || record.OwnerID.String() != claims.PlayerID {
		s.logger.Warn("token record does not match signed payload",
			"kind", kind,
			"record_kind", record.Kind,
			"record_id", record.ID,
		)
		s.metrics.TokenValidated(kind, ValidationResultInvalid)
		return nil, ErrAuthenticationFailure
	}

	s.metrics.TokenValidated(kind, ValidationResultOK)
	return claims.Payload(), nil
}

// detectReuse revokes every persisted token of the owner of a token that
// verifies but is not stored anymore. Failures here are logged only, the
// caller fails with ErrAuthenticationFailure either way.
func (s *TokenService) detectReuse(ctx context.Context, token string, kind TokenKind, secret []byte) {
	claims, err := s.signer.Verify(token, secret)
	if err != nil {
		s.logger.Debug("unknown token does not verify, nothing to revoke", "kind", kind, "error", err)
		return
	}

	ownerID, err := uuid.Parse(claims.PlayerID)
	if err != nil {
		s.logger.Debug("unknown token carries an invalid owner", "kind", kind)
		return
	}

	if _, err := s.owners.FindByID(ctx, ownerID); err != nil {
		if !IsPlayerNotFound(err) {
			s.logger.Error("failed to look up owner of replayed token", "player_id", ownerID, "error", err)
		}
		return
	}

	n, err := s.RevokeAllFor(ctx, ownerID)
	if err != nil {
		s.logger.Error("failed to revoke tokens after reuse", "player_id", ownerID, "error", err)
		return
	}

	s.metrics.TokenReuseDetected()
	s.logger.Warn("persisted token reuse detected, sessions revoked",
		"player_id", ownerID,
		"kind", kind,
		"revoked", n,
	)

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventTokenReuseDetected,
		PlayerID:  ownerID.String(),
		Metadata:  map[string]any{"kind": kind, "revoked": n},
	})
}

// Consume deletes a single persisted token. Consuming an unknown token is
// not an error.
func (s *TokenService) Consume(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.store.DeleteByToken(ctx, token); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to consume token")
	}
	return nil
}

// RevokeAllFor deletes every persisted token of the owner and returns how
// many were removed.
func (s *TokenService) RevokeAllFor(ctx context.Context, ownerID uuid.UUID) (int, error) {
	n, err := s.store.DeleteAllByOwner(ctx, ownerID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to revoke tokens").
			WithMetadata(map[string]any{"player_id": ownerID.String()})
	}

	s.metrics.TokensRevoked(n)
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventSessionRevoked,
		PlayerID:  ownerID.String(),
		Metadata:  map[string]any{"revoked": n},
	})
	return n, nil
}
