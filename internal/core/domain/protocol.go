package domain

import "github.com/google/uuid"

// The session/registry boundary is message passing only: sessions hold a
// registry capability, the registry holds a Deliverable per session, and
// the records below are the only things that cross. Every field is set at
// construction and never mutated.

// Deliverable is the opaque handle the registry uses to push text to one
// session without knowing its transport.
type Deliverable interface {
	Deliver(msg OutboundText) error
}

// JoinRequest registers a session with the registry.
type JoinRequest struct {
	ID     uuid.UUID
	RoomID RoomID
	Handle Deliverable
}

// LeaveNotice withdraws a session. Safe to send more than once.
type LeaveNotice struct {
	ID     uuid.UUID
	RoomID RoomID
}

// InboundText carries one text frame from a session to the registry.
type InboundText struct {
	ID     uuid.UUID
	RoomID RoomID
	Text   string
}

// OutboundText is pushed back through a Deliverable.
type OutboundText struct {
	Text string
}

// Presence notices sent to room members. Clients parse these exact
// strings to learn of peers.

func ConnectedNotice(id uuid.UUID) string {
	return "connected " + id.String()
}

func DisconnectedNotice(id uuid.UUID) string {
	return "disconnected " + id.String()
}

// InfoNotice tells a freshly joined session its assigned identity.
func InfoNotice(id uuid.UUID) string {
	return "info " + id.String()
}
