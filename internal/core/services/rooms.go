package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/contracts"
	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

var tracer = otel.Tracer("room-service")

// RoomService orchestrates everything around a room that is not live
// routing: metadata rows for the REST surface and the redis presence
// mirror. The registry stays the single authority over who is actually
// in a room; this service only decorates that view.
type RoomService struct {
	log      *slog.Logger
	repo     domain.RoomRepository
	presence contracts.PresenceStore
	census   contracts.Census

	refreshPeriod time.Duration
}

func NewRoomService(
	log *slog.Logger,
	repo domain.RoomRepository,
	presence contracts.PresenceStore,
	census contracts.Census,
	refreshPeriod time.Duration,
) *RoomService {
	return &RoomService{
		log:           log,
		repo:          repo,
		presence:      presence,
		census:        census,
		refreshPeriod: refreshPeriod,
	}
}

// HandleConnect runs after a session registered: upserts the metadata
// row for the lazily created room and records the first presence
// check-in. Failures here are reported but must not take the live
// session down with them.
func (s *RoomService) HandleConnect(ctx context.Context, room domain.RoomID, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "RoomService.HandleConnect", trace.WithAttributes(
		attribute.String("room_id", room.String()),
		attribute.String("conn_id", id.String()),
	))
	defer span.End()

	if _, err := s.repo.EnsureRoom(ctx, room); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure room failed")
		s.log.ErrorContext(ctx, "rooms - handle connect - ensure room failed",
			"room_id", room, "conn_id", id, "err", err)
		return err
	}
	if err := s.presence.CheckIn(ctx, room, id); err != nil {
		span.RecordError(err)
		s.log.WarnContext(ctx, "rooms - handle connect - presence check-in failed",
			"room_id", room, "conn_id", id, "err", err)
	}
	s.log.InfoContext(ctx, "rooms - handle connect - room ready", "room_id", room, "conn_id", id)
	return nil
}

// HandleHeartbeat refreshes the presence mirror until the session's
// context is cancelled.
func (s *RoomService) HandleHeartbeat(ctx context.Context, room domain.RoomID, id uuid.UUID) {
	ticker := time.NewTicker(s.refreshPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("rooms - handle heartbeat - stopped", "room_id", room, "conn_id", id)
			return
		case <-ticker.C:
			if err := s.presence.CheckIn(ctx, room, id); err != nil {
				s.log.WarnContext(ctx, "rooms - handle heartbeat - presence check-in failed",
					"room_id", room, "conn_id", id, "err", err)
			}
		}
	}
}

// HandleDisconnect removes the presence entry and clears the room's
// mirror when the last member is gone.
func (s *RoomService) HandleDisconnect(ctx context.Context, room domain.RoomID, id uuid.UUID) {
	ctx, span := tracer.Start(ctx, "RoomService.HandleDisconnect", trace.WithAttributes(
		attribute.String("room_id", room.String()),
		attribute.String("conn_id", id.String()),
	))
	defer span.End()

	if err := s.presence.CheckOut(ctx, room, id); err != nil {
		span.RecordError(err)
		s.log.WarnContext(ctx, "rooms - handle disconnect - presence check-out failed",
			"room_id", room, "conn_id", id, "err", err)
	}
	if err := s.repo.TouchRoom(ctx, room); err != nil {
		span.RecordError(err)
		s.log.WarnContext(ctx, "rooms - handle disconnect - touch room failed",
			"room_id", room, "err", err)
	}
	if online, err := s.presence.Online(ctx, room); err == nil && len(online) == 0 {
		if err := s.presence.ClearRoom(ctx, room); err != nil {
			span.RecordError(err)
			s.log.WarnContext(ctx, "rooms - handle disconnect - clear room failed",
				"room_id", room, "err", err)
		}
	}
	s.log.InfoContext(ctx, "rooms - handle disconnect - done", "room_id", room, "conn_id", id)
}

// CreateRoom registers metadata ahead of the first join.
func (s *RoomService) CreateRoom(ctx context.Context, room domain.RoomID) (*domain.Room, error) {
	ctx, span := tracer.Start(ctx, "RoomService.CreateRoom", trace.WithAttributes(
		attribute.String("room_id", room.String()),
	))
	defer span.End()

	created, err := s.repo.CreateRoom(ctx, room)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomAlreadyExists) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create room failed")
			s.log.ErrorContext(ctx, "rooms - create room - failed", "room_id", room, "err", err)
		}
		return nil, err
	}
	s.log.InfoContext(ctx, "rooms - create room - created", "room_id", room)
	return created, nil
}

// ListRooms merges stored metadata with live occupancy. Rooms that are
// live but have no row yet (join raced the upsert) still show up with
// zero-value timestamps.
func (s *RoomService) ListRooms(ctx context.Context) ([]domain.RoomInfo, error) {
	ctx, span := tracer.Start(ctx, "RoomService.ListRooms")
	defer span.End()

	stored, err := s.repo.ListRooms(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list rooms failed")
		s.log.ErrorContext(ctx, "rooms - list rooms - failed", "err", err)
		return nil, err
	}
	occupancy := s.census.Occupancy()

	infos := make([]domain.RoomInfo, 0, len(stored))
	for _, room := range stored {
		infos = append(infos, domain.RoomInfo{
			ID:        room.ID,
			Members:   occupancy[room.ID],
			CreatedAt: room.CreatedAt,
			LastSeen:  room.LastActiveAt,
		})
		delete(occupancy, room.ID)
	}
	for id, members := range occupancy {
		infos = append(infos, domain.RoomInfo{ID: id, Members: members})
	}
	slices.SortFunc(infos, func(a, b domain.RoomInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	span.SetAttributes(attribute.Int("room_count", len(infos)))
	return infos, nil
}

// GetRoom returns metadata, live member ids and the presence mirror's
// online list for one room. A room unknown to both the store and the
// registry is ErrRoomNotFound.
func (s *RoomService) GetRoom(ctx context.Context, room domain.RoomID) (*domain.RoomDetail, error) {
	ctx, span := tracer.Start(ctx, "RoomService.GetRoom", trace.WithAttributes(
		attribute.String("room_id", room.String()),
	))
	defer span.End()

	members := s.census.Members(room)
	stored, err := s.repo.GetRoomByID(ctx, room)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			span.RecordError(err)
			return nil, err
		}
		if len(members) == 0 {
			return nil, domain.ErrRoomNotFound
		}
		stored = &domain.Room{ID: room}
	}

	online, err := s.presence.Online(ctx, room)
	if err != nil {
		span.RecordError(err)
		s.log.WarnContext(ctx, "rooms - get room - presence read failed", "room_id", room, "err", err)
	}
	span.SetAttributes(attribute.Int("member_count", len(members)))
	return &domain.RoomDetail{Room: *stored, Members: members, Online: online}, nil
}
