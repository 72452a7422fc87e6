package realtime

import (
	"context"
)

// RosterEntry is one admitted connection as seen by other players
type RosterEntry struct {
	SocketID string   `json:"socket_id"`
	Player   Identity `json:"player_data"`
}

// Presence broadcasts the full roster of a namespace on every connect and
// disconnect. Nothing is cached, the roster is always read from the
// namespace.
type Presence struct {
	ns *Namespace
}

// AttachPresence wires the roster broadcast into ns
func AttachPresence(ns *Namespace) *Presence {
	p := &Presence{ns: ns}
	ns.OnConnect(func(context.Context, *Conn) { p.Broadcast() })
	ns.OnDisconnect(func(context.Context, *Conn) { p.Broadcast() })
	return p
}

// Roster derives the current roster from the namespace
func (p *Presence) Roster() []RosterEntry {
	return rosterOf(p.ns.Snapshot())
}

// Broadcast sends one roster to the whole namespace. Roster and recipients
// come from the same snapshot.
func (p *Presence) Broadcast() {
	conns := p.ns.Snapshot()
	roster := rosterOf(conns)
	for _, c := range conns {
		c.Emit(EventPlayersBroadcast, roster)
	}
}

func rosterOf(conns []*Conn) []RosterEntry {
	out := make([]RosterEntry, 0, len(conns))
	for _, c := range conns {
		out = append(out, RosterEntry{SocketID: c.ID(), Player: c.Identity()})
	}
	return out
}
