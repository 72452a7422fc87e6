package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Username string `json:"username" example:"ada_lovelace" doc:"Player username."`
}

func (p InitializePasswordResetMessage) Type() string { return "player.password_reset" }

// ResetNotifier delivers a RESET token to its owner
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, player *Player, token string) error
}

// ResetNotifierFunc adapts a function to the ResetNotifier interface.
type ResetNotifierFunc func(ctx context.Context, player *Player, token string) error

func (f ResetNotifierFunc) NotifyPasswordReset(ctx context.Context, player *Player, token string) error {
	return f(ctx, player, token)
}

type InitializePasswordResetHandler struct {
	players  PlayerStore
	tokens   *TokenService
	notifier ResetNotifier
	activity ActivitySink
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
// Without a notifier the token is only logged at debug level.
func NewInitializePasswordResetHandler(players PlayerStore, tokens *TokenService) *InitializePasswordResetHandler {
	h := &InitializePasswordResetHandler{
		players:  players,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
	h.notifier = ResetNotifierFunc(func(_ context.Context, player *Player, token string) error {
		h.logger.Debug("password reset token issued", "player_id", player.ID, "token", token)
		return nil
	})
	return h
}

func (h *InitializePasswordResetHandler) WithNotifier(n ResetNotifier) *InitializePasswordResetHandler {
	if n != nil {
		h.notifier = n
	}
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute succeeds silently for unknown usernames so the endpoint can not be
// used to enumerate players.
func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	event.Username = NormalizeUsername(event.Username)
	if err := (PasswordResetRequest{Username: event.Username}).Validate(); err != nil {
		return ValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	player, err := h.players.FindByUsername(ctx, event.Username)
	if err != nil {
		if IsPlayerNotFound(err) {
			h.logger.Debug("password reset requested for unknown username")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve player for password reset")
	}

	token, err := h.tokens.Issue(ctx, TokenPayload{ID: player.ID.String()}, TokenKindReset)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue password reset token")
	}

	if err := h.notifier.NotifyPasswordReset(ctx, player, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver password reset token")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		PlayerID:  player.ID.String(),
	})

	return nil
}
