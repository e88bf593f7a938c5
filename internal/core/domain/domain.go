package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RoomID names a room. Rooms are created lazily on first join and
// destroyed when their last member leaves.
type RoomID uint64

func (r RoomID) String() string {
	return strconv.FormatUint(uint64(r), 10)
}

// ParseRoomID parses a path segment into a RoomID. Negative and
// non-numeric values are rejected.
func ParseRoomID(s string) (RoomID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidRoomID
	}
	return RoomID(n), nil
}

// Room is the stored metadata record behind the REST surface. Live
// membership is owned by the registry, not by this record.
type Room struct {
	ID           RoomID
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// RoomInfo is a room summary with its live occupancy.
type RoomInfo struct {
	ID        RoomID
	Members   int
	CreatedAt time.Time
	LastSeen  time.Time
}

// RoomDetail combines stored metadata with the live member set and the
// presence mirror's view of who recently checked in.
type RoomDetail struct {
	Room    Room
	Members []uuid.UUID
	Online  []string
}
