package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-presence/internal/config"
	"github.com/iamasit07/chat-presence/internal/repository"
	"github.com/iamasit07/chat-presence/internal/repository/redis"
	"github.com/iamasit07/chat-presence/internal/service/activity"
	"github.com/iamasit07/chat-presence/internal/service/presence"
	transportHttp "github.com/iamasit07/chat-presence/internal/transport/http"
	"github.com/iamasit07/chat-presence/internal/transport/natsx"
	"github.com/iamasit07/chat-presence/internal/transport/websocket"
	"github.com/iamasit07/chat-presence/pkg/logger"
	"github.com/iamasit07/chat-presence/pkg/telemetry"
	"github.com/iamasit07/chat-presence/pkg/uid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found")
		}
	}

	cfg := config.LoadConfig()

	zl, err := logger.Init(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, "chat-presence", zl)
	if err != nil {
		zl.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	stores, err := repository.Open(ctx, cfg, zl.Named("store"))
	if err != nil {
		zl.Fatal("failed to open stores", zap.String("provider", cfg.StoreProvider), zap.Error(err))
	}

	// sessions serves reads that may lag; liveSessions backs the reconciler,
	// which must never decide presence from a cached client count.
	var sessions, liveSessions repository.SessionStore = stores.Sessions, stores.Sessions
	if cfg.RedisURL != "" {
		if rc := redis.InitRedis(ctx, cfg.RedisURL, cfg.RedisPassword, zl.Named("redis")); rc != nil {
			defer rc.Close()
			cached := redis.NewCachedSessionStore(stores.Sessions, redis.NewRedisCache(rc), zl.Named("redis"))
			sessions, liveSessions = cached, cached.LiveCounts()
		}
	}

	instanceID := uid.New()
	connManager := websocket.NewConnectionManager(cfg.AliveWindow, zl.Named("ws"))
	activityService := activity.NewService(sessions, stores.Users, zl.Named("activity"))

	broadcasters := presence.MultiBroadcaster{connManager}
	if cfg.NatsURL != "" {
		nc, err := natsx.Connect(ctx, natsx.Options{
			URL:      cfg.NatsURL,
			User:     cfg.NatsUser,
			Password: cfg.NatsPass,
			Name:     "chat-presence-" + instanceID,
		}, zl.Named("natsx"))
		if err != nil {
			zl.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer nc.Drain()

		if _, err := natsx.NewRelay(connManager, instanceID, zl.Named("natsx")).Subscribe(nc); err != nil {
			zl.Fatal("failed to subscribe to presence events", zap.Error(err))
		}
		broadcasters = append(broadcasters, natsx.NewBroadcaster(nc, uid.NewEventIDs(cfg.NodeID), instanceID))
	}

	reconciler := presence.NewReconciler(presence.Options{
		Connections: connManager,
		Resolver:    connManager,
		Sessions:    liveSessions,
		Users:       stores.Users,
		Broadcaster: broadcasters,
		Logger:      zl.Named("presence"),
		TickTimeout: cfg.TickTimeout,
	})
	worker := presence.NewWorker(reconciler, cfg.PresenceInterval, zl.Named("presence"))
	worker.Start(ctx)

	wsHandler := websocket.NewHandler(connManager, activityService, cfg.JWTSecret, cfg.AllowedOrigins, zl.Named("ws"))
	router := transportHttp.NewRouter(transportHttp.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		WebSocket:      wsHandler.HandleWebSocket,
		Presence:       transportHttp.NewPresenceHandler(reconciler, stores.Users, sessions, connManager, zl.Named("http")),
		Logger:         zl.Named("http"),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zl.Info("server starting", zap.String("port", cfg.Port), zap.String("instance", instanceID))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	if err := worker.Wait(shutdownCtx); err != nil {
		zl.Warn("presence check still running at shutdown", zap.Error(err))
	}
	if err := stores.Close(shutdownCtx); err != nil {
		zl.Warn("failed to close stores", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		zl.Warn("failed to flush telemetry", zap.Error(err))
	}

	zl.Info("server exited gracefully")
}
