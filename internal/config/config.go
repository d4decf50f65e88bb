// Package config loads the dealercast configuration from environment
// variables into one explicit struct that is passed into each collaborator at
// construction time. Nothing else in the codebase reads the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the root configuration for both binaries.
type Config struct {
	// Env is the runtime environment (development, production).
	Env string `env:"APP_ENV" envDefault:"development"`

	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Renderer RendererConfig `envPrefix:"RENDER_"`
	Dispatch DispatchConfig `envPrefix:"DISPATCH_"`
	Storage  StorageConfig
	Sheets   SheetsConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Port         string        `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	// CORSOrigins is a comma separated list of allowed origins.
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
}

type PostgresConfig struct {
	URL string `env:"DATABASE_URL"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// RendererConfig configures the external render vendor client and the inbound
// webhook.
type RendererConfig struct {
	APIBase string `env:"API_BASE" envDefault:"https://api.creatomate.com/v1"`
	APIKey  string `env:"API_KEY"`
	// WebhookBaseURL is the public base URL this service is reachable on;
	// the dispatcher appends the webhook route to it.
	WebhookBaseURL string `env:"WEBHOOK_BASE_URL"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
	// InsecureDevWebhooks allows unsigned webhooks when no secret is set.
	// Local development only.
	InsecureDevWebhooks bool          `env:"WEBHOOK_INSECURE_DEV" envDefault:"false"`
	Timeout             time.Duration `env:"TIMEOUT" envDefault:"60s"`
	DownloadTimeout     time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"120s"`
}

// DispatchConfig tunes the queue worker. BatchSize stays under the vendor's
// ~30-per-10-seconds rate cap at a one-minute schedule.
type DispatchConfig struct {
	BatchSize     int           `env:"BATCH_SIZE" envDefault:"25"`
	Schedule      string        `env:"SCHEDULE" envDefault:"* * * * *"`
	SweepSchedule string        `env:"SWEEP_SCHEDULE" envDefault:"*/10 * * * *"`
	StuckJobTTL   time.Duration `env:"STUCK_JOB_TTL" envDefault:"30m"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"55s"`
	QueueName     string        `env:"QUEUE_NAME" envDefault:"dealercast:admitted"`
}

type StorageConfig struct {
	// Provider selects the asset store backend: gdrive or localfs.
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"localfs"`
	LocalRoot string `env:"STORAGE_LOCAL_ROOT" envDefault:"/data"`
	Drive     DriveConfig
}

type DriveConfig struct {
	ClientID     string `env:"GDRIVE_CLIENT_ID"`
	ClientSecret string `env:"GDRIVE_CLIENT_SECRET"`
	RefreshToken string `env:"GDRIVE_REFRESH_TOKEN"`
	// DealersFolderID is the Drive folder holding one subfolder per dealer.
	DealersFolderID   string `env:"GDRIVE_DEALERS_FOLDER_ID"`
	ArchiveFolderName string `env:"GDRIVE_ARCHIVE_FOLDER_NAME" envDefault:"Archive"`
}

type SheetsConfig struct {
	SpreadsheetID string `env:"SHEETS_SPREADSHEET_ID"`
	// ActivePostsRange is the A1 range listing currently active post numbers.
	ActivePostsRange string `env:"SHEETS_ACTIVE_POSTS_RANGE" envDefault:"Schedule!A2:A"`
}

type LogConfig struct {
	Level     string `env:"LOG_LEVEL" envDefault:"info"`
	Format    string `env:"LOG_FORMAT" envDefault:"json"`
	AddSource bool   `env:"LOG_SOURCE" envDefault:"false"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.sanitize()
	return &cfg, nil
}

// IsDev reports whether the service runs in development mode.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "dev")
}

// sanitize applies guardrails to loaded values.
func (c *Config) sanitize() {
	if c.Dispatch.BatchSize <= 0 {
		c.Dispatch.BatchSize = 25
	}
	if c.Dispatch.StuckJobTTL <= 0 {
		c.Dispatch.StuckJobTTL = 30 * time.Minute
	}
	c.Renderer.APIBase = strings.TrimRight(c.Renderer.APIBase, "/")
	c.Renderer.WebhookBaseURL = strings.TrimRight(c.Renderer.WebhookBaseURL, "/")
}

// ValidateAPI checks settings the API binary cannot run without.
func (c *Config) ValidateAPI() error {
	if c.Postgres.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// ValidateWorker checks settings the worker binary cannot run without.
func (c *Config) ValidateWorker() error {
	if c.Postgres.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Renderer.APIKey == "" {
		return fmt.Errorf("RENDER_API_KEY is required")
	}
	if c.Renderer.WebhookBaseURL == "" {
		return fmt.Errorf("RENDER_WEBHOOK_BASE_URL is required")
	}
	return nil
}
