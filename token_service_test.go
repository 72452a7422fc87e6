package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-arena-auth"
)

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("access tokens are not persisted", func(t *testing.T) {
		f := newFixture()

		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID(), Nickname: "ada"}, auth.TokenKindAccess)

		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("session and reset tokens are persisted with absolute expiry", func(t *testing.T) {
		f := newFixture()

		for _, kind := range []auth.TokenKind{auth.TokenKindSession, auth.TokenKindReset} {
			token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, kind)
			require.NoError(t, err)

			rec, err := f.store.FindByToken(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, kind, rec.Kind)
			assert.Equal(t, f.player.ID, rec.OwnerID)
			assert.Equal(t, f.clock.Now().Add(kind.TTL()), rec.ExpiresAt)
		}

		assert.Equal(t, 2, f.store.Len())
	})

	t.Run("tokens issued in the same second differ", func(t *testing.T) {
		f := newFixture()

		a, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)
		b, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
		assert.Equal(t, 2, f.store.Len())
	})

	t.Run("missing secret is a configuration error", func(t *testing.T) {
		opts := testOptions()
		opts.SessionTokenSecret = ""
		store := auth.NewMemoryCredentialStore()
		svc := auth.NewTokenService(opts, store, auth.NewMemoryPlayerStore(), auth.WithTokenLogger(auth.NopLogger()))

		token, err := svc.Issue(ctx, auth.TokenPayload{ID: uuid.NewString()}, auth.TokenKindSession)

		assert.Empty(t, token)
		assert.True(t, auth.IsMissingSecret(err))
		assert.False(t, auth.IsAuthenticationFailure(err))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("failed insert aborts issuance", func(t *testing.T) {
		store := &MockCredentialStore{}
		store.On("Insert", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		svc := auth.NewTokenService(testOptions(), store, auth.NewMemoryPlayerStore(), auth.WithTokenLogger(auth.NopLogger()))

		token, err := svc.Issue(ctx, auth.TokenPayload{ID: uuid.NewString()}, auth.TokenKindSession)

		assert.Error(t, err)
		assert.Empty(t, token)
		store.AssertExpectations(t)
	})

	t.Run("session pair shares the owner", func(t *testing.T) {
		f := newFixture()

		pair, err := f.tokens.IssueSessionPair(ctx, f.playerID(), "ada")
		require.NoError(t, err)

		access, err := f.tokens.Validate(ctx, pair.AccessToken, auth.TokenKindAccess)
		require.NoError(t, err)
		session, err := f.tokens.Validate(ctx, pair.SessionToken, auth.TokenKindSession)
		require.NoError(t, err)

		assert.Equal(t, f.playerID(), access.ID)
		assert.Equal(t, "ada", access.Nickname)
		assert.Equal(t, access.ID, session.ID)
		assert.Empty(t, session.Nickname)
	})
}

func TestTokenService_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("access token round trip", func(t *testing.T) {
		f := newFixture()
		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID(), Nickname: "ada"}, auth.TokenKindAccess)
		require.NoError(t, err)

		payload, err := f.tokens.Validate(ctx, token, auth.TokenKindAccess)

		require.NoError(t, err)
		assert.Equal(t, &auth.TokenPayload{ID: f.playerID(), Nickname: "ada"}, payload)
	})

	t.Run("expired access token fails", func(t *testing.T) {
		f := newFixture()
		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID(), Nickname: "ada"}, auth.TokenKindAccess)
		require.NoError(t, err)

		f.clock.Advance(auth.AccessTokenTTL + time.Second)

		_, err = f.tokens.Validate(ctx, token, auth.TokenKindAccess)
		assert.True(t, auth.IsAuthenticationFailure(err))
	})

	t.Run("tampered token fails", func(t *testing.T) {
		f := newFixture()
		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID(), Nickname: "ada"}, auth.TokenKindAccess)
		require.NoError(t, err)

		_, err = f.tokens.Validate(ctx, token+"x", auth.TokenKindAccess)
		assert.True(t, auth.IsAuthenticationFailure(err))

		_, err = f.tokens.Validate(ctx, "", auth.TokenKindAccess)
		assert.True(t, auth.IsAuthenticationFailure(err))
	})

	t.Run("session token is not an access token", func(t *testing.T) {
		f := newFixture()
		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		_, err = f.tokens.Validate(ctx, token, auth.TokenKindAccess)
		assert.True(t, auth.IsAuthenticationFailure(err))
	})

	t.Run("access token presented as session fails without revoking", func(t *testing.T) {
		f := newFixture()
		pair, err := f.tokens.IssueSessionPair(ctx, f.playerID(), "ada")
		require.NoError(t, err)

		_, err = f.tokens.Validate(ctx, pair.AccessToken, auth.TokenKindSession)
		assert.True(t, auth.IsAuthenticationFailure(err))

		_, err = f.tokens.Validate(ctx, pair.SessionToken, auth.TokenKindSession)
		assert.NoError(t, err)
	})

	t.Run("session token validated as reset fails", func(t *testing.T) {
		f := newFixture()
		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		_, err = f.tokens.Validate(ctx, token, auth.TokenKindReset)
		assert.True(t, auth.IsAuthenticationFailure(err))
	})

	t.Run("expired session token fails and keeps other sessions", func(t *testing.T) {
		f := newFixture()
		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		f.clock.Advance(auth.SessionTokenTTL + time.Second)

		_, err = f.tokens.Validate(ctx, token, auth.TokenKindSession)
		assert.True(t, auth.IsAuthenticationFailure(err))
		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("store outage is not an authentication failure", func(t *testing.T) {
		store := &MockCredentialStore{}
		store.On("FindByToken", mock.Anything, "some-token").Return(nil, errors.New("connection refused"))

		svc := auth.NewTokenService(testOptions(), store, auth.NewMemoryPlayerStore(), auth.WithTokenLogger(auth.NopLogger()))

		_, err := svc.Validate(ctx, "some-token", auth.TokenKindSession)

		require.Error(t, err)
		assert.False(t, auth.IsAuthenticationFailure(err))

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryInternal, richErr.Category)
		store.AssertExpectations(t)
	})

	t.Run("missing secret on validate", func(t *testing.T) {
		opts := testOptions()
		opts.AccessTokenSecret = ""
		svc := auth.NewTokenService(opts, auth.NewMemoryCredentialStore(), auth.NewMemoryPlayerStore())

		_, err := svc.Validate(ctx, "whatever", auth.TokenKindAccess)
		assert.True(t, auth.IsMissingSecret(err))
	})

	t.Run("record owned by someone else fails", func(t *testing.T) {
		f := newFixture()
		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		_, err = f.store.DeleteByToken(ctx, token)
		require.NoError(t, err)
		require.NoError(t, f.store.Insert(ctx, &auth.TokenRecord{
			ID:        uuid.New(),
			Token:     token,
			Kind:      auth.TokenKindSession,
			OwnerID:   uuid.New(),
			CreatedAt: f.clock.Now(),
			ExpiresAt: f.clock.Now().Add(time.Hour),
		}))

		_, err = f.tokens.Validate(ctx, token, auth.TokenKindSession)
		assert.True(t, auth.IsAuthenticationFailure(err))
	})
}

func TestTokenService_ReuseDetection(t *testing.T) {
	ctx := context.Background()

	t.Run("replaying a consumed session token revokes every session", func(t *testing.T) {
		var events []auth.ActivityEvent
		f := newFixture(auth.WithTokenActivitySink(auth.ActivitySinkFunc(func(_ context.Context, e auth.ActivityEvent) error {
			events = append(events, e)
			return nil
		})))

		stolen, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		// legitimate rotation
		_, err = f.tokens.Validate(ctx, stolen, auth.TokenKindSession)
		require.NoError(t, err)
		require.NoError(t, f.tokens.Consume(ctx, stolen))
		fresh, err := f.tokens.IssueSessionPair(ctx, f.playerID(), "ada")
		require.NoError(t, err)

		reset, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindReset)
		require.NoError(t, err)

		_, err = f.tokens.Validate(ctx, stolen, auth.TokenKindSession)
		assert.True(t, auth.IsAuthenticationFailure(err))

		assert.Equal(t, 0, f.store.Len())

		_, err = f.tokens.Validate(ctx, fresh.SessionToken, auth.TokenKindSession)
		assert.True(t, auth.IsAuthenticationFailure(err))
		_, err = f.tokens.Validate(ctx, reset, auth.TokenKindReset)
		assert.True(t, auth.IsAuthenticationFailure(err))

		var reuse bool
		for _, e := range events {
			if e.EventType == auth.ActivityEventTokenReuseDetected {
				reuse = true
				assert.Equal(t, f.playerID(), e.PlayerID)
			}
		}
		assert.True(t, reuse)
	})

	t.Run("other players keep their sessions", func(t *testing.T) {
		f := newFixture()
		other, err := f.players.Create(ctx, &auth.Player{Nickname: "grace", Username: "grace_hopper"})
		require.NoError(t, err)

		stolen, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)
		otherSession, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: other.ID.String()}, auth.TokenKindSession)
		require.NoError(t, err)

		require.NoError(t, f.tokens.Consume(ctx, stolen))
		_, err = f.tokens.Validate(ctx, stolen, auth.TokenKindSession)
		assert.True(t, auth.IsAuthenticationFailure(err))

		payload, err := f.tokens.Validate(ctx, otherSession, auth.TokenKindSession)
		require.NoError(t, err)
		assert.Equal(t, other.ID.String(), payload.ID)
	})

	t.Run("unknown owner revokes nothing", func(t *testing.T) {
		f := newFixture()
		ghost := uuid.New()

		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: ghost.String()}, auth.TokenKindSession)
		require.NoError(t, err)
		_, err = f.tokens.Issue(ctx, auth.TokenPayload{ID: ghost.String()}, auth.TokenKindSession)
		require.NoError(t, err)
		require.NoError(t, f.tokens.Consume(ctx, token))

		_, err = f.tokens.Validate(ctx, token, auth.TokenKindSession)
		assert.True(t, auth.IsAuthenticationFailure(err))
		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("garbage token revokes nothing", func(t *testing.T) {
		f := newFixture()
		_, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		_, err = f.tokens.Validate(ctx, "not.a.token", auth.TokenKindSession)
		assert.True(t, auth.IsAuthenticationFailure(err))
		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("expired replay does not revoke", func(t *testing.T) {
		f := newFixture()
		stolen, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindReset)
		require.NoError(t, err)
		require.NoError(t, f.tokens.Consume(ctx, stolen))

		f.clock.Advance(auth.ResetTokenTTL + time.Second)
		_, err = f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		_, err = f.tokens.Validate(ctx, stolen, auth.TokenKindReset)
		assert.True(t, auth.IsAuthenticationFailure(err))
		assert.Equal(t, 1, f.store.Len())
	})
}

func TestTokenService_ConsumeAndRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("consume is idempotent", func(t *testing.T) {
		f := newFixture()
		token, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
		require.NoError(t, err)

		assert.NoError(t, f.tokens.Consume(ctx, token))
		assert.NoError(t, f.tokens.Consume(ctx, token))
		assert.NoError(t, f.tokens.Consume(ctx, ""))
		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("revoke all removes only the owner's records", func(t *testing.T) {
		f := newFixture()
		other := uuid.New()

		for i := 0; i < 3; i++ {
			_, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: f.playerID()}, auth.TokenKindSession)
			require.NoError(t, err)
		}
		_, err := f.tokens.Issue(ctx, auth.TokenPayload{ID: other.String()}, auth.TokenKindSession)
		require.NoError(t, err)

		n, err := f.tokens.RevokeAllFor(ctx, f.player.ID)

		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("max age follows the kind", func(t *testing.T) {
		f := newFixture()
		assert.Equal(t, 3*24*time.Hour, f.tokens.MaxAge(auth.TokenKindSession))
		assert.Equal(t, 10*time.Minute, f.tokens.MaxAge(auth.TokenKindAccess))
		assert.Equal(t, time.Hour, f.tokens.MaxAge(auth.TokenKindReset))
	})
}
