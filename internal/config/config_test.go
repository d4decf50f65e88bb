package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dealercast")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "https://api.creatomate.com/v1", cfg.Renderer.APIBase)
	assert.Equal(t, 25, cfg.Dispatch.BatchSize)
	assert.Equal(t, "* * * * *", cfg.Dispatch.Schedule)
	assert.Equal(t, 30*time.Minute, cfg.Dispatch.StuckJobTTL)
	assert.Equal(t, "dealercast:admitted", cfg.Dispatch.QueueName)
	assert.Equal(t, "localfs", cfg.Storage.Provider)
	assert.Equal(t, "Archive", cfg.Storage.Drive.ArchiveFolderName)
	assert.Equal(t, "Schedule!A2:A", cfg.Sheets.ActivePostsRange)
}

func TestSanitizeTrimsTrailingSlashes(t *testing.T) {
	t.Setenv("RENDER_API_BASE", "https://api.example.com/v1/")
	t.Setenv("RENDER_WEBHOOK_BASE_URL", "https://app.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", cfg.Renderer.APIBase)
	assert.Equal(t, "https://app.example.com", cfg.Renderer.WebhookBaseURL)
}

func TestSanitizeGuardsBatchSize(t *testing.T) {
	t.Setenv("DISPATCH_BATCH_SIZE", "-5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Dispatch.BatchSize)
}

func TestValidateAPI(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateAPI())

	cfg.Postgres.URL = "postgres://localhost/dealercast"
	assert.NoError(t, cfg.ValidateAPI())
}

func TestValidateWorker(t *testing.T) {
	cfg := &Config{}
	cfg.Postgres.URL = "postgres://localhost/dealercast"
	assert.Error(t, cfg.ValidateWorker(), "renderer key required")

	cfg.Renderer.APIKey = "key"
	assert.Error(t, cfg.ValidateWorker(), "webhook base url required")

	cfg.Renderer.WebhookBaseURL = "https://app.example.com"
	assert.NoError(t, cfg.ValidateWorker())
}

func TestIsDev(t *testing.T) {
	assert.True(t, (&Config{Env: "development"}).IsDev())
	assert.True(t, (&Config{Env: "DEV"}).IsDev())
	assert.False(t, (&Config{Env: "production"}).IsDev())
}
