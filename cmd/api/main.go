package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"dealercast/internal/admission"
	"dealercast/internal/archive"
	"dealercast/internal/config"
	"dealercast/internal/httpapi"
	"dealercast/internal/httpapi/handlers"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/pkg/shutdown"
	"dealercast/internal/sheets"
	"dealercast/internal/storage"
	"dealercast/internal/store"
	"dealercast/internal/webhook"
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
		ServiceName: "dealercast-api",
	})

	if err := cfg.ValidateAPI(); err != nil {
		log.LogFatal("invalid configuration", err)
	}

	log.Info("starting dealercast API", "env", cfg.Env)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
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
	log.Info("PostgreSQL connected")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	q := queue.New(rdb, cfg.Dispatch.QueueName)

	// Asset store for webhook completions.
	assets, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", assets.Provider())

	// Archive sweeps need the scheduling sheet; without one the post-upload
	// sweep is disabled and uploads still succeed.
	var archiver *archive.Archiver
	if cfg.Sheets.SpreadsheetID != "" {
		posts, err := sheets.NewClient(ctx, cfg.Storage.Drive, cfg.Sheets)
		if err != nil {
			log.LogFatal("failed to initialize sheets client", err)
		}
		archiver = archive.New(assets, posts, log)
	} else {
		log.Warn("SHEETS_SPREADSHEET_ID not set, auto archive disabled")
	}

	admissionSvc := admission.NewService(st, st, q, log)
	webhookSvc := webhook.NewService(st, assets, archiver, webhook.Options{
		Secret:          cfg.Renderer.WebhookSecret,
		InsecureDev:     cfg.Renderer.InsecureDevWebhooks && cfg.IsDev(),
		DownloadTimeout: cfg.Renderer.DownloadTimeout,
	}, log)

	router := httpapi.NewRouter(handlers.Deps{
		Batches:         st,
		Dealers:         st,
		Templates:       st,
		Admission:       admissionSvc,
		Webhook:         webhookSvc,
		DB:              pool,
		Redis:           q,
		StorageProvider: assets.Provider(),
		Log:             log,
	}, httpapi.Options{
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RequestTimeout: cfg.HTTP.WriteTimeout,
	}, log)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
