// Package realtime hosts authenticated WebSocket namespaces: the admission
// handshake, the presence roster and the invite/match coordinator.
package realtime

import (
	"encoding/json"
)

// Server to client events.
const (
	EventConnectionError  = "connection_error"
	EventPlayersBroadcast = "players_broadcast"
	EventInvite           = "on_invite"
	EventInviteAccepted   = "on_invite_accepted"
	EventInviteRefused    = "on_invite_refused"
	EventMessage          = "on_message"
	EventTyping           = "on_typing"
	EventException        = "exception"
)

// Client to server events.
const (
	ActionInvite         = "invite"
	ActionInviteResponse = "invite_response"
	ActionSendMessage    = "send_message"
	ActionTyping         = "typing"
)

// Transport is a bidirectional JSON frame stream. ReadJSON is only called
// from the connection read loop and WriteJSON only from its writer.
type Transport interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Frame is an inbound client frame
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Message is an outbound server frame
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Handshake carries the credentials presented when connecting
type Handshake struct {
	AccessToken  string
	SessionToken string
}

// Identity is attached to a connection once admitted and never changes
type Identity struct {
	PlayerID string `json:"playerID"`
	Nickname string `json:"nickname"`
}
