package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
	"github.com/Sycamoie/Bear-Hole-server/internal/core/services"
	"github.com/Sycamoie/Bear-Hole-server/pkg/logging"
)

// RoomHandler serves the plain REST surface around rooms.
type RoomHandler struct {
	rooms *services.RoomService
}

func NewRoomHandler(rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

type roomSummary struct {
	ID        string     `json:"room_id"`
	Members   int        `json:"members"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	LastSeen  *time.Time `json:"last_active_at,omitempty"`
}

type roomDetail struct {
	roomSummary
	MemberIDs []string `json:"member_ids"`
	Online    []string `json:"online"`
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	infos, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		log.Error("rooms handler - list failed", "err", err)
		http.Error(w, "failed to list rooms", http.StatusInternalServerError)
		return
	}
	out := make([]roomSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, summarize(info))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	roomID, err := domain.ParseRoomID(r.PathValue("room_id"))
	if err != nil {
		http.Error(w, "room id must be a non-negative integer", http.StatusBadRequest)
		return
	}
	detail, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		log.Error("rooms handler - get failed", "room_id", roomID, "err", err)
		http.Error(w, "failed to load room", http.StatusInternalServerError)
		return
	}

	resp := roomDetail{
		roomSummary: summarize(domain.RoomInfo{
			ID:        detail.Room.ID,
			Members:   len(detail.Members),
			CreatedAt: detail.Room.CreatedAt,
			LastSeen:  detail.Room.LastActiveAt,
		}),
		MemberIDs: make([]string, 0, len(detail.Members)),
		Online:    detail.Online,
	}
	for _, id := range detail.Members {
		resp.MemberIDs = append(resp.MemberIDs, id.String())
	}
	if resp.Online == nil {
		resp.Online = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	roomID, err := domain.ParseRoomID(r.PathValue("room_id"))
	if err != nil {
		http.Error(w, "room id must be a non-negative integer", http.StatusBadRequest)
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomAlreadyExists) {
			http.Error(w, "room already exists", http.StatusConflict)
			return
		}
		log.Error("rooms handler - create failed", "room_id", roomID, "err", err)
		http.Error(w, "failed to create room", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, roomSummary{
		ID:        room.ID.String(),
		CreatedAt: &room.CreatedAt,
		LastSeen:  &room.LastActiveAt,
	})
}

func summarize(info domain.RoomInfo) roomSummary {
	out := roomSummary{ID: info.ID.String(), Members: info.Members}
	if !info.CreatedAt.IsZero() {
		created := info.CreatedAt
		out.CreatedAt = &created
	}
	if !info.LastSeen.IsZero() {
		seen := info.LastSeen
		out.LastSeen = &seen
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
