package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"dashcollab/backend/internal/api/handler"
	"dashcollab/backend/internal/collabhub"
	"dashcollab/backend/internal/config"
	"dashcollab/backend/internal/logging"
	"dashcollab/backend/internal/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Warn().Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := collabhub.NewRegistry(cfg.Room.IdleTTL, cfg.Room.SweepInterval)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("registry stopped unexpectedly")
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery())

	if cfg.RateLimit.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logging.Warn().Err(err).Str("addr", cfg.Redis.Addr).
				Msg("redis unreachable, rate limiting will fail open")
		}
		r.Use(middleware.RateLimit(rdb, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))
	}

	h := handler.NewHandler(hub, cfg.JWTSecret)
	r.GET("/session", h.GetSession)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/rooms", h.GetRooms)
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("http server shutdown failed")
		}
	}()

	logging.Info().Str("addr", cfg.ListenAddr).Msg("dashboard collaboration service listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal().Err(err).Msg("http server failed")
	}
	logging.Info().Msg("shutdown complete")
}
