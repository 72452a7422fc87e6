package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token" doc:"Password reset token"`
	Password string `json:"password" example:"N3w-Secret!" doc:"Password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "player.password_reset.finalize" }

type FinalizePasswordResetHandler struct {
	players  PlayerStore
	tokens   *TokenService
	hasher   PasswordAuthenticator
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(players PlayerStore, tokens *TokenService) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		players:  players,
		tokens:   tokens,
		hasher:   NewBcryptHasher(DefaultBcryptCost),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithPasswordAuthenticator(hasher PasswordAuthenticator) *FinalizePasswordResetHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

// execute applies the new password then revokes every persisted token of the
// player, open sessions included.
func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := (PasswordResetConfirmRequest{Token: event.Token, Password: event.Password}).Validate(); err != nil {
		return ValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	payload, err := h.tokens.Validate(ctx, event.Token, TokenKindReset)
	if err != nil {
		return err
	}

	if err := h.tokens.Consume(ctx, event.Token); err != nil {
		return err
	}

	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return goerrors.New("password reset token is not associated with a player", goerrors.CategoryInternal)
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	if err := h.players.UpdatePassword(ctx, id, hash); err != nil {
		if IsPlayerNotFound(err) {
			return ErrPlayerNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update player password")
	}

	revoked, err := h.tokens.RevokeAllFor(ctx, id)
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		PlayerID:  id.String(),
		Metadata:  map[string]any{"revoked": revoked},
	})

	return nil
}
