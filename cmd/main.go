package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sycamoie/Bear-Hole-server/internal/app/registry"
	"github.com/Sycamoie/Bear-Hole-server/internal/app/server"
	"github.com/Sycamoie/Bear-Hole-server/internal/config"
	"github.com/Sycamoie/Bear-Hole-server/internal/core/services"
	"github.com/Sycamoie/Bear-Hole-server/internal/platform/logger"
	"github.com/Sycamoie/Bear-Hole-server/internal/platform/telemetry"
	"github.com/Sycamoie/Bear-Hole-server/internal/plugins/postgres"
	redisPlugin "github.com/Sycamoie/Bear-Hole-server/internal/plugins/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	log.Info("starting broker",
		"hb_interval", cfg.Heartbeat.Interval,
		"client_timeout", cfg.Heartbeat.ClientTimeout)

	otelShutdown, err := telemetry.InitTelemetry(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	pdb, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "err", err)
		os.Exit(1)
	}
	defer pdb.Close()
	log.Info("postgres connected")

	rdb, err := redisPlugin.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		os.Exit(1)
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	roomRepo := postgres.NewRoomRepo(pdb)
	presence := redisPlugin.NewRedisPresenceStore(rdb, cfg.Heartbeat.ClientTimeout)

	// Core
	hub := registry.New(log)
	roomSvc := services.NewRoomService(log, roomRepo, presence, hub, cfg.Heartbeat.Interval)

	srv := server.NewServer(log, cfg, hub, roomSvc)
	go func() {
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// New joins are refused while in-flight sessions drain.
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "err", err)
	}
}
