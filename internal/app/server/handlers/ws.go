package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sycamoie/Bear-Hole-server/internal/app/server/ws"
	"github.com/Sycamoie/Bear-Hole-server/internal/core/contracts"
	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
	"github.com/Sycamoie/Bear-Hole-server/internal/core/services"
	"github.com/Sycamoie/Bear-Hole-server/pkg/logging"
)

// WSHandler upgrades a request into a live session bound to the room
// named by the path.
type WSHandler struct {
	hub           contracts.Registry
	rooms         *services.RoomService
	probeInterval time.Duration
	clientTimeout time.Duration
}

func NewWSHandler(hub contracts.Registry, rooms *services.RoomService, probeInterval, clientTimeout time.Duration) *WSHandler {
	return &WSHandler{
		hub:           hub,
		rooms:         rooms,
		probeInterval: probeInterval,
		clientTimeout: clientTimeout,
	}
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())

	roomID, err := domain.ParseRoomID(r.PathValue("room_id"))
	if err != nil {
		log.Warn("ws handler - bad room id", "raw", r.PathValue("room_id"))
		http.Error(w, "room id must be a non-negative integer", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("room_id", roomID.String()))

	// The session outlives the HTTP request span; the connection dying
	// is what cancels it.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("ws handler - upgrade failed", logging.Room(roomID.String()), logging.Err(err))
		return
	}

	sess, err := ws.NewSession(ctx, conn, roomID, h.hub, h.probeInterval, h.clientTimeout, log)
	if err != nil {
		// Never registered, never visible to the room.
		log.Error("ws handler - session rejected", logging.Room(roomID.String()), logging.Err(err))
		_ = conn.Close()
		return
	}
	span.SetAttributes(attribute.String("conn_id", sess.ID().String()))
	log.Info("ws handler - connection established",
		logging.Room(roomID.String()), logging.Conn(sess.ID().String()))

	if err := h.rooms.HandleConnect(ctx, roomID, sess.ID()); err != nil {
		log.Warn("ws handler - room bookkeeping failed",
			logging.Room(roomID.String()), logging.Conn(sess.ID().String()), logging.Err(err))
	}
	go h.rooms.HandleHeartbeat(ctx, roomID, sess.ID())
	defer h.rooms.HandleDisconnect(sessionCtx, roomID, sess.ID())

	sess.ReadLoop()
}
