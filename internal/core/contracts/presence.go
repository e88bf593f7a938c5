package contracts

import (
	"context"

	"github.com/google/uuid"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

// PresenceStore mirrors per-room liveness into a TTL-scored set. It is
// advisory: the registry stays the authority on membership, the mirror
// only feeds the REST presence view and self-cleans stale entries.
type PresenceStore interface {
	// CheckIn records that id was seen alive in room just now.
	CheckIn(ctx context.Context, room domain.RoomID, id uuid.UUID) error
	// Online returns ids that checked in within the liveness window.
	Online(ctx context.Context, room domain.RoomID) ([]string, error)
	CheckOut(ctx context.Context, room domain.RoomID, id uuid.UUID) error
	ClearRoom(ctx context.Context, room domain.RoomID) error
}
