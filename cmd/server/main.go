package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chat/internal/config"
	"chat/internal/events"
	"chat/internal/metrics"
	"chat/internal/routers"
	sessionManager "chat/internal/session_management"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	var publisher events.Publisher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		publisher = events.NewRedisPublisher(rdb)
		logger.Info("presence publishing enabled", zap.String("redisAddr", cfg.RedisAddr))
	}

	manager := sessionManager.NewSessionManager(logger, publisher, cfg.StaleAfter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.StartReaper(ctx, cfg.ReapInterval)

	h := sessionManager.NewHandlers(logger, manager, []byte(cfg.JWTSecret))

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer, middleware.Timeout(60*time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	r.Use(metrics.Middleware("chat-svc"))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())
	routers.ChatRoutes(r, h)

	addr := ":" + cfg.Port
	log.Printf("chat-svc listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
