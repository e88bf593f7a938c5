package contracts

import (
	"github.com/google/uuid"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

// Registry is the session-facing capability: the only way a session can
// affect shared membership state. All three calls are fire-and-forget
// from the session's point of view; Join's error only reports a broker
// that is no longer accepting sessions.
type Registry interface {
	Join(req domain.JoinRequest) error
	Leave(n domain.LeaveNotice)
	Route(m domain.InboundText)
}

// Census is the read-only view of live membership consumed by the REST
// surface and the stats endpoint.
type Census interface {
	Stats() (rooms, members int)
	Members(room domain.RoomID) []uuid.UUID
	Occupancy() map[domain.RoomID]int
}
