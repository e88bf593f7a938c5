package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

/*
	-- Rooms (REST metadata only; live membership is in-memory)
	CREATE TABLE rooms (
		id             BIGINT PRIMARY KEY,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_active_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

type RoomRepo struct {
	db *sql.DB
}

func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

func (r *RoomRepo) GetRoomByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room := &domain.Room{ID: id}
	query := `SELECT created_at, last_active_at FROM rooms WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, int64(id)).Scan(&room.CreatedAt, &room.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepo) CreateRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room := &domain.Room{ID: id}
	query := `INSERT INTO rooms (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, last_active_at`
	err := r.db.QueryRowContext(ctx, query, int64(id)).Scan(&room.CreatedAt, &room.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepo) EnsureRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room := &domain.Room{ID: id}
	// Upsert so the join path never fails on an existing row; the
	// last_active_at refresh doubles as the activity marker.
	query := `INSERT INTO rooms (id)
		VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET last_active_at = now()
		RETURNING created_at, last_active_at`
	err := r.db.QueryRowContext(ctx, query, int64(id)).Scan(&room.CreatedAt, &room.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepo) TouchRoom(ctx context.Context, id domain.RoomID) error {
	query := `UPDATE rooms SET last_active_at = now() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, int64(id))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepo) ListRooms(ctx context.Context) ([]domain.Room, error) {
	query := `SELECT id, created_at, last_active_at FROM rooms ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var room domain.Room
		var id int64
		if err := rows.Scan(&id, &room.CreatedAt, &room.LastActiveAt); err != nil {
			return nil, err
		}
		room.ID = domain.RoomID(id)
		out = append(out, room)
	}
	return out, rows.Err()
}
