package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sycamoie/Bear-Hole-server/internal/app/registry"
	"github.com/Sycamoie/Bear-Hole-server/internal/app/server/handlers"
	"github.com/Sycamoie/Bear-Hole-server/internal/config"
	"github.com/Sycamoie/Bear-Hole-server/internal/core/services"
	"github.com/Sycamoie/Bear-Hole-server/pkg/middleware"
)

type Server struct {
	log         *slog.Logger
	httpSrv     *http.Server
	mux         *http.ServeMux
	hub         *registry.Registry
	wsHandler   *handlers.WSHandler
	roomHandler *handlers.RoomHandler
}

func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	hub *registry.Registry,
	rooms *services.RoomService,
) *Server {
	s := &Server{
		log:         log,
		mux:         http.NewServeMux(),
		hub:         hub,
		wsHandler:   handlers.NewWSHandler(hub, rooms, cfg.Heartbeat.Interval, cfg.Heartbeat.ClientTimeout),
		roomHandler: handlers.NewRoomHandler(rooms),
	}
	s.routes()

	handler := middleware.TracerMiddleware(cfg.Service.Name)(
		middleware.RequestLogger(log)(s.mux),
	)
	s.httpSrv = &http.Server{
		Addr:        cfg.Service.Addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections write for their whole
		// lifetime.
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /ws/{room_id}", s.wsHandler.Handler)

	s.mux.HandleFunc("GET /api/v1/rooms", s.roomHandler.List)
	s.mux.HandleFunc("GET /api/v1/room/{room_id}", s.roomHandler.Get)
	s.mux.HandleFunc("POST /api/v1/room/{room_id}", s.roomHandler.Create)

	s.mux.HandleFunc("GET /health", s.health)
	s.mux.HandleFunc("GET /stats", s.stats)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	rooms, members := s.hub.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"rooms": rooms, "clients": members})
}

func (s *Server) Start() error {
	s.log.Info("server - starting", "addr", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
