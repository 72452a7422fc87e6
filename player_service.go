package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AuthResult is returned by every flow that hands out a session pair
type AuthResult struct {
	Player *Player
	Tokens *TokenPair
}

// PlayerService implements register, login, refresh and logout flows
type PlayerService struct {
	players  PlayerStore
	tokens   *TokenService
	hasher   PasswordAuthenticator
	logger   Logger
	activity ActivitySink
}

type PlayerServiceOption func(*PlayerService)

func WithPlayerLogger(logger Logger) PlayerServiceOption {
	return func(s *PlayerService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPasswordAuthenticator(hasher PasswordAuthenticator) PlayerServiceOption {
	return func(s *PlayerService) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

func WithPlayerActivitySink(sink ActivitySink) PlayerServiceOption {
	return func(s *PlayerService) {
		s.activity = normalizeActivitySink(sink)
	}
}

func NewPlayerService(players PlayerStore, tokens *TokenService, opts ...PlayerServiceOption) *PlayerService {
	s := &PlayerService{
		players:  players,
		tokens:   tokens,
		hasher:   NewBcryptHasher(DefaultBcryptCost),
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeUsername is the stored form of a username, stores compare
// usernames in this form only
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Register creates a player and opens a session for it
func (s *PlayerService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Nickname = strings.TrimSpace(req.Nickname)
	req.Username = NormalizeUsername(req.Username)

	if err := req.Validate(); err != nil {
		return nil, ValidationError(err)
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	player, err := s.players.Create(ctx, &Player{
		Nickname:     req.Nickname,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if IsUsernameTaken(err) || IsNicknameTaken(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create player")
	}

	pair, err := s.tokens.IssueSessionPair(ctx, player.ID.String(), player.Nickname)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventPlayerRegistered,
		PlayerID:  player.ID.String(),
	})

	return &AuthResult{Player: player, Tokens: pair}, nil
}

// Login checks username and password. Unknown usernames and wrong
// passwords fail the same way.
func (s *PlayerService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, ValidationError(err)
	}

	player, err := s.players.FindByUsername(ctx, NormalizeUsername(req.Username))
	if err != nil {
		if IsPlayerNotFound(err) {
			s.loginFailed(ctx, "", "unknown username")
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up player")
	}

	if err := s.hasher.ComparePasswordAndHash(req.Password, player.PasswordHash); err != nil {
		s.loginFailed(ctx, player.ID.String(), "password mismatch")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssueSessionPair(ctx, player.ID.String(), player.Nickname)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		PlayerID:  player.ID.String(),
	})

	return &AuthResult{Player: player, Tokens: pair}, nil
}

func (s *PlayerService) loginFailed(ctx context.Context, playerID, reason string) {
	s.logger.Debug("login failed", "player_id", playerID, "reason", reason)
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		PlayerID:  playerID,
		Metadata:  map[string]any{"reason": reason},
	})
}

// Refresh rotates a session: the presented SESSION token is consumed and a
// new pair is issued.
func (s *PlayerService) Refresh(ctx context.Context, sessionToken string) (*AuthResult, error) {
	if sessionToken == "" {
		return nil, withMeta(ErrMissingCredential, map[string]any{"credential": "session"})
	}

	payload, err := s.tokens.Validate(ctx, sessionToken, TokenKindSession)
	if err != nil {
		return nil, err
	}

	player, err := s.findPlayer(ctx, payload.ID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Consume(ctx, sessionToken); err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssueSessionPair(ctx, player.ID.String(), player.Nickname)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventSessionRotated,
		PlayerID:  player.ID.String(),
	})

	return &AuthResult{Player: player, Tokens: pair}, nil
}

// Logout consumes the session token, an empty or unknown token is a no-op
func (s *PlayerService) Logout(ctx context.Context, sessionToken string) error {
	return s.tokens.Consume(ctx, sessionToken)
}

// LogoutEverywhere revokes every persisted token of the session owner
func (s *PlayerService) LogoutEverywhere(ctx context.Context, sessionToken string) (int, error) {
	if sessionToken == "" {
		return 0, withMeta(ErrMissingCredential, map[string]any{"credential": "session"})
	}

	payload, err := s.tokens.Validate(ctx, sessionToken, TokenKindSession)
	if err != nil {
		return 0, err
	}

	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return 0, ErrAuthenticationFailure
	}

	return s.tokens.RevokeAllFor(ctx, id)
}

func (s *PlayerService) findPlayer(ctx context.Context, rawID string) (*Player, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrPlayerNotFound
	}

	player, err := s.players.FindByID(ctx, id)
	if err != nil {
		if IsPlayerNotFound(err) {
			return nil, ErrPlayerNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up player")
	}
	return player, nil
}
