// Package main our entry point.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gatherly/eventchat/internal"
	"github.com/gatherly/eventchat/internal/config"
	"github.com/gatherly/eventchat/internal/events"
	"github.com/gatherly/eventchat/internal/handler"
	"github.com/gatherly/eventchat/internal/hub"
	ratelimiter "github.com/gatherly/eventchat/internal/rate_limiter"
	"github.com/gatherly/eventchat/internal/store"
)

func main() {
	// Fine when missing; env comes from the platform in production.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// Init DB
	log.Info("initializing database connection")
	if cfg.DatabaseURL == "" {
		log.Fatal("DB_URL environment variable is not set")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("could not connect to the postgresql database", zap.Error(err))
	}
	repo := events.NewPgRepository(pool)

	pings := map[string]handler.Pinger{
		"postgres": pool.Ping,
	}

	// Init room store: redis when configured, in-process otherwise.
	notifyHub := hub.New()
	var roomStore store.RoomStore
	var redisClient *redis.Client

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opt)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatal("could not connect to redis", zap.Error(err))
		}
		cancel()

		roomStore = store.NewRedis(redisClient, log)
		pings["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

		// Wake local long-polls for appends made on other nodes.
		go hub.RunRedisBridge(ctx, redisClient, notifyHub, log)

		log.Info("using redis room store")
	} else {
		roomStore = store.NewMemory()
		log.Warn("REDIS_URL not set; using in-process room store, single node only")
	}

	rl := ratelimiter.NewIPRateLimiter(cfg.SendLimit, cfg.SendWindow, ratelimiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	}, log)
	defer rl.Cancel()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(internal.RequestLogger(log))

	r.Get("/chat/realtime", handler.ServeRealtime(roomStore, repo, notifyHub, cfg.PollWait, log))
	r.Get("/chat/messages", handler.ServeMessages(roomStore, repo, log))
	r.With(rl.Middleware).Post("/chat/send", handler.ServeSend(roomStore, repo, notifyHub, log))
	r.Get("/healthz", handler.ServeHealth(log, pings))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Must outlast the long-poll wait window.
		WriteTimeout: cfg.PollWait + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received; shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("couldn't close redis client", zap.Error(err))
		}
	}
	pool.Close()

	log.Info("server stopped")
}
