package realtime

import (
	"context"

	"golang.org/x/sync/errgroup"

	auth "github.com/goliatone/go-arena-auth"
)

// Admission is the handshake shared by every namespace: an ACCESS and a
// SESSION token, both valid and both owned by the same player.
type Admission struct {
	tokens auth.TokenValidator
	logger auth.Logger
}

func NewAdmission(tokens auth.TokenValidator, logger auth.Logger) *Admission {
	if logger == nil {
		logger = auth.NopLogger()
	}
	return &Admission{tokens: tokens, logger: logger}
}

// Admit validates both tokens concurrently. Both validations always run to
// completion so a replayed session token still triggers revocation when the
// access token is bad.
func (a *Admission) Admit(ctx context.Context, hs Handshake) (Identity, error) {
	if hs.AccessToken == "" || hs.SessionToken == "" {
		return Identity{}, auth.ErrMissingCredential
	}

	var access, session *auth.TokenPayload

	var g errgroup.Group
	g.Go(func() error {
		p, err := a.tokens.Validate(ctx, hs.AccessToken, auth.TokenKindAccess)
		access = p
		return err
	})
	g.Go(func() error {
		p, err := a.tokens.Validate(ctx, hs.SessionToken, auth.TokenKindSession)
		session = p
		return err
	})

	if err := g.Wait(); err != nil {
		return Identity{}, err
	}

	if access.ID != session.ID {
		a.logger.Warn("admission tokens belong to different players",
			"access_player_id", access.ID,
			"session_player_id", session.ID,
		)
		return Identity{}, auth.ErrIdentityMismatch
	}

	return Identity{PlayerID: access.ID, Nickname: access.Nickname}, nil
}
