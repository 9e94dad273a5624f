package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"party-sync-service/internal/api"
	"party-sync-service/internal/archive"
	"party-sync-service/internal/config"
	"party-sync-service/internal/coordinator"
	"party-sync-service/internal/player"
	"party-sync-service/internal/replication"
)

var log = logging.Logger("service")

const advanceEvery = 500 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("party-sync-service: %v", err)
	}
	if err := logging.SetLogLevel("*", cfg.LogLevel); err != nil {
		log.Fatalf("party-sync-service: LOG_LEVEL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("party-sync-service: %v", err)
	}
	defer closeStore()

	sim := player.NewSimulated(nil)
	coord := coordinator.New(cfg.Coordinator(), sim, store)
	defer coord.Close()

	var history api.HistoryArchive
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("pg: %v", err)
		}
		defer pool.Close()
		if err := archive.AutoMigrate(ctx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		arch := archive.New(pool)
		coord.SetArchive(arch)
		history = arch
	}

	hub := api.NewHub()
	go hub.Run(ctx)

	srv := api.NewServer(coord, sim, history, hub, cfg.AllowedOrigin)
	srv.StartStatusFeed(ctx)
	go runAutoAdvance(ctx, coord, sim, advanceEvery)

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Infow("party-sync-service listening", "port", cfg.Port, "participant", cfg.ParticipantID)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("party-sync-service: %v", err)
	}
}

// openStore connects to Redis, or falls back to an in-process store when no
// URL is configured.
func openStore(ctx context.Context, redisURL string) (replication.Adapter, func(), error) {
	if redisURL == "" {
		log.Warn("REDIS_URL is empty, using in-memory session store")
		return replication.NewMemoryStore(), func() {}, nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, errors.New("invalid REDIS_URL: " + err.Error())
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warnw("redis not reachable yet", "err", err)
	}
	return replication.NewRedisStore(rdb, 0), func() { _ = rdb.Close() }, nil
}
