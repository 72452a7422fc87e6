package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	auth "github.com/goliatone/go-arena-auth"
)

// InviteRequest is the data of an invite frame
type InviteRequest struct {
	Nickname string `json:"nickname"`
}

func (r InviteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Nickname, validation.Required),
	)
}

// InviteResponse is the data of an invite_response frame
type InviteResponse struct {
	MatchID  string `json:"matchID"`
	Accepted bool   `json:"accepted"`
}

func (r InviteResponse) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MatchID, validation.Required, is.UUID),
	)
}

// InviteEvent is delivered to the invited player only
type InviteEvent struct {
	Challenger Identity `json:"challenger"`
	MatchID    string   `json:"matchID"`
}

// InviteOutcomeEvent is delivered to the match room on accept or refuse
type InviteOutcomeEvent struct {
	Message string `json:"message"`
	MatchID string `json:"matchID"`
}

type pendingInvite struct {
	challengerID string
	targetID     string
}

// Coordinator pairs two online players. An invite is Proposed until the
// invited connection answers once, accepting or refusing, after which the
// match room is torn down.
type Coordinator struct {
	ns      *Namespace
	logger  auth.Logger
	metrics *auth.Metrics

	mu      sync.Mutex
	pending map[string]pendingInvite
}

// AttachCoordinator wires the invite and invite_response events into ns
func AttachCoordinator(ns *Namespace, logger auth.Logger, metrics *auth.Metrics) *Coordinator {
	if logger == nil {
		logger = auth.NopLogger()
	}

	co := &Coordinator{
		ns:      ns,
		logger:  logger,
		metrics: metrics,
		pending: make(map[string]pendingInvite),
	}

	ns.Handle(ActionInvite, func(ctx context.Context, c *Conn, data json.RawMessage) error {
		var req InviteRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		_, err := co.Invite(ctx, c, req.Nickname)
		return err
	})

	ns.Handle(ActionInviteResponse, func(ctx context.Context, c *Conn, data json.RawMessage) error {
		var req InviteResponse
		if err := decode(data, &req); err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return auth.ValidationError(err)
		}
		return co.Respond(ctx, c, req.MatchID, req.Accepted)
	})

	ns.OnDisconnect(func(_ context.Context, c *Conn) { co.drop(c.ID()) })

	return co
}

// Invite resolves nickname among the open connections of the namespace,
// skipping the caller's own connection. On success the caller joins a new
// match room and only the target is notified.
func (co *Coordinator) Invite(_ context.Context, caller *Conn, nickname string) (string, error) {
	if err := (InviteRequest{Nickname: nickname}).Validate(); err != nil {
		return "", auth.ValidationError(err)
	}

	var target *Conn
	for _, c := range co.ns.Snapshot() {
		if c.ID() != caller.ID() && c.Identity().Nickname == nickname {
			target = c
			break
		}
	}

	if target == nil {
		co.metrics.Invite("invalid_opponent")
		return "", auth.ErrInvalidOpponent
	}

	matchID := uuid.NewString()

	co.mu.Lock()
	co.pending[matchID] = pendingInvite{challengerID: caller.ID(), targetID: target.ID()}
	co.mu.Unlock()

	// the target may have left after the snapshot, its disconnect hook
	// then ran before the invite was pending
	if _, ok := co.ns.Conn(target.ID()); !ok {
		co.mu.Lock()
		delete(co.pending, matchID)
		co.mu.Unlock()
		co.metrics.Invite("invalid_opponent")
		return "", auth.ErrInvalidOpponent
	}

	co.ns.Join(matchID, caller)
	target.Emit(EventInvite, InviteEvent{
		Challenger: caller.Identity(),
		MatchID:    matchID,
	})

	co.metrics.Invite("proposed")
	co.logger.Debug("invite proposed",
		"match_id", matchID,
		"challenger", caller.Identity().PlayerID,
		"target", target.Identity().PlayerID,
	)

	return matchID, nil
}

// Respond answers a pending invite. Only the invited connection may answer
// and only once.
func (co *Coordinator) Respond(_ context.Context, caller *Conn, matchID string, accepted bool) error {
	co.mu.Lock()
	p, ok := co.pending[matchID]
	if ok && p.targetID == caller.ID() {
		delete(co.pending, matchID)
	}
	co.mu.Unlock()

	if !ok || p.targetID != caller.ID() {
		return auth.ErrUnknownMatch
	}

	nickname := caller.Identity().Nickname
	if accepted {
		co.ns.Join(matchID, caller)
		co.ns.ToRoom(matchID, EventInviteAccepted, InviteOutcomeEvent{
			Message: fmt.Sprintf("Player %s accepted your challenge", nickname),
			MatchID: matchID,
		})
		co.metrics.Invite("accepted")
	} else {
		co.ns.ToRoom(matchID, EventInviteRefused, InviteOutcomeEvent{
			Message: fmt.Sprintf("Player %s refused your challenge", nickname),
			MatchID: matchID,
		})
		co.metrics.Invite("refused")
	}

	co.ns.ClearRoom(matchID)
	return nil
}

// Pending reports whether matchID still waits for an answer
func (co *Coordinator) Pending(matchID string) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	_, ok := co.pending[matchID]
	return ok
}

// drop forgets invites involving a closed connection
func (co *Coordinator) drop(connID string) {
	co.mu.Lock()
	var dropped []string
	for matchID, p := range co.pending {
		if p.challengerID == connID || p.targetID == connID {
			delete(co.pending, matchID)
			dropped = append(dropped, matchID)
		}
	}
	co.mu.Unlock()

	for _, matchID := range dropped {
		co.ns.ClearRoom(matchID)
		co.metrics.Invite("abandoned")
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return auth.ValidationError(fmt.Errorf("missing event data"))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return auth.ValidationError(err)
	}
	return nil
}
