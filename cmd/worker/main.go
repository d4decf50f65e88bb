package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"dealercast/internal/config"
	"dealercast/internal/dispatch"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/pkg/shutdown"
	"dealercast/internal/renderer"
	"dealercast/internal/store"
	"dealercast/internal/worker"
	"dealercast/internal/worker/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("failed to load configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		AddSource:   cfg.Log.AddSource,
		ServiceName: "dealercast-worker",
	})

	if err := cfg.ValidateWorker(); err != nil {
		log.LogFatal("invalid configuration", err)
	}

	log.Info("starting dealercast worker", "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)
	shutdownMgr.Register("worker-loop", func(context.Context) error {
		cancel()
		return nil
	})

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.LogFatal("failed to ensure schema", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	shutdownMgr.Register("redis", func(context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}

	q := queue.New(rdb, cfg.Dispatch.QueueName)

	rc := renderer.NewHTTPClient(renderer.Options{
		BaseURL: cfg.Renderer.APIBase,
		APIKey:  cfg.Renderer.APIKey,
		Timeout: cfg.Renderer.Timeout,
	})

	dispatcher := dispatch.New(st, st, rc, q, dispatch.Options{
		BatchSize:  cfg.Dispatch.BatchSize,
		WebhookURL: cfg.Renderer.WebhookBaseURL + "/webhooks/render",
		LockTTL:    cfg.Dispatch.LockTTL,
	}, log)
	sweeper := dispatch.NewSweeper(st, cfg.Dispatch.StuckJobTTL, log)

	w := worker.New(dispatcher, sweeper, q, worker.Options{
		Schedule:      cfg.Dispatch.Schedule,
		SweepSchedule: cfg.Dispatch.SweepSchedule,
	}, log)

	go func() {
		if err := w.Run(ctx); err != nil {
			log.LogFatal("worker failed", err)
		}
	}()

	shutdownMgr.Wait()
}
