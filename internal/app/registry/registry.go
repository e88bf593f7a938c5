// Package registry holds the single authority over room membership and
// message fan-out. One instance serves the whole process; sessions talk
// to it exclusively through the contract records in core/domain.
package registry

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

// Registry keeps two invariant-linked maps: every registered session id
// appears in exactly one room's member set, and every member id has a
// deliverable handle. A room with no members is removed, never kept
// empty. The mutex serializes all mutation so no two operations ever
// interleave on these maps.
type Registry struct {
	log *slog.Logger

	mu       sync.RWMutex
	closed   bool
	sessions map[uuid.UUID]domain.Deliverable
	rooms    map[domain.RoomID]map[uuid.UUID]struct{}
}

func New(log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		sessions: make(map[uuid.UUID]domain.Deliverable),
		rooms:    make(map[domain.RoomID]map[uuid.UUID]struct{}),
	}
}

// Join records the session in both maps, then notifies the room.
// Membership is updated before any notification goes out, so a peer that
// reacts to "connected" immediately will already see the newcomer in the
// room.
func (r *Registry) Join(req domain.JoinRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRegistryClosed
	}

	members, ok := r.rooms[req.RoomID]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		r.rooms[req.RoomID] = members
	}
	peers := make([]uuid.UUID, 0, len(members))
	for id := range members {
		peers = append(peers, id)
	}
	members[req.ID] = struct{}{}
	r.sessions[req.ID] = req.Handle

	for _, id := range peers {
		r.deliver(domain.ConnectedNotice(req.ID), id)
	}
	r.deliver(domain.InfoNotice(req.ID), req.ID)

	r.log.Info("registry - join - member added",
		"room_id", req.RoomID, "conn_id", req.ID, "room_size", len(members))
	return nil
}

// Leave withdraws the session and notifies whoever remains. Duplicate or
// late notices are no-ops.
func (r *Registry) Leave(n domain.LeaveNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[n.ID]; !ok {
		return
	}
	delete(r.sessions, n.ID)

	members, ok := r.rooms[n.RoomID]
	if !ok {
		r.log.Warn("registry - leave - room not tracked", "room_id", n.RoomID, "conn_id", n.ID)
		return
	}
	for id := range members {
		if id != n.ID {
			r.deliver(domain.DisconnectedNotice(n.ID), id)
		}
	}
	delete(members, n.ID)
	if len(members) == 0 {
		delete(r.rooms, n.RoomID)
		r.log.Info("registry - leave - room removed", "room_id", n.RoomID)
	}

	r.log.Info("registry - leave - member removed",
		"room_id", n.RoomID, "conn_id", n.ID, "room_size", len(members))
}

// Route classifies the payload once and dispatches on the result. The
// payload is delivered verbatim in every branch.
func (r *Registry) Route(m domain.InboundText) {
	cmd, err := domain.ParseCommand(m.Text)
	if err != nil {
		r.log.Debug("registry - route - payload dropped",
			"room_id", m.RoomID, "conn_id", m.ID, "err", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	switch cmd.Kind {
	case domain.CommandWhisper:
		// Direct-addressed: the target only has to exist somewhere, not
		// share the sender's room.
		r.deliver(m.Text, cmd.Target)
	case domain.CommandReserved:
		// Moderation prefix. Recognized so policy can attach here later.
	default:
		members, ok := r.rooms[m.RoomID]
		if !ok {
			r.log.Warn("registry - route - room not tracked", "room_id", m.RoomID, "conn_id", m.ID)
			return
		}
		for id := range members {
			r.deliver(m.Text, id)
		}
	}
}

// Close stops the registry from accepting new sessions. Existing
// sessions drain through their normal Leave path.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// deliver pushes text to one handle. Callers hold r.mu. A missing or
// failing handle is logged and skipped; it never aborts the caller's
// batch.
func (r *Registry) deliver(text string, dest uuid.UUID) {
	handle, ok := r.sessions[dest]
	if !ok {
		r.log.Info("registry - deliver - no session for id", "conn_id", dest)
		return
	}
	if err := handle.Deliver(domain.OutboundText{Text: text}); err != nil {
		r.log.Warn("registry - deliver - push failed", "conn_id", dest, "err", err)
	}
}

// Stats reports live room and member counts.
func (r *Registry) Stats() (rooms, members int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.sessions)
}

// Members returns a snapshot of a room's member ids, nil when the room
// does not exist.
func (r *Registry) Members(room domain.RoomID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// Occupancy returns a snapshot of member counts per live room.
func (r *Registry) Occupancy() map[domain.RoomID]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.RoomID]int, len(r.rooms))
	for room, members := range r.rooms {
		out[room] = len(members)
	}
	return out
}
