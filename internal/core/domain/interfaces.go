package domain

import "context"

// RoomRepository stores the REST-facing room metadata.
type RoomRepository interface {
	GetRoomByID(ctx context.Context, id RoomID) (*Room, error)
	// CreateRoom inserts a fresh record, ErrRoomAlreadyExists on conflict.
	CreateRoom(ctx context.Context, id RoomID) (*Room, error)
	// EnsureRoom upserts the record and refreshes last_active_at. Used on
	// the join path so metadata exists for lazily created rooms.
	EnsureRoom(ctx context.Context, id RoomID) (*Room, error)
	TouchRoom(ctx context.Context, id RoomID) error
	ListRooms(ctx context.Context) ([]Room, error)
}
