package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProductionConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "secret")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)
		assert.Equal(t, "mock", cfg.Delivery.Provider)
		assert.Equal(t, 15*time.Minute, cfg.Autopilot.Interval)
		assert.Equal(t, 1, cfg.Autopilot.CampaignConcurrency)
		assert.GreaterOrEqual(t, cfg.Autopilot.LockTTL, cfg.Autopilot.RunTimeout)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("AUTOPILOT_INTERVAL", "90s")
		t.Setenv("AUTOPILOT_CAMPAIGN_CONCURRENCY", "4")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
		t.Setenv("DELIVERY_PROVIDER", "http")
		t.Setenv("DELIVERY_BASE_URL", "https://mail.example.com")
		t.Setenv("DELIVERY_API_KEY", "key")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)
		assert.Equal(t, 90*time.Second, cfg.Autopilot.Interval)
		assert.Equal(t, 4, cfg.Autopilot.CampaignConcurrency)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.AllowedOrigins)
		assert.Equal(t, "https://mail.example.com", cfg.Delivery.BaseURL)
	})

	t.Run("MissingPassword", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "")
		_, err := LoadProductionConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_PASSWORD is required")
	})
}

func TestValidateProductionConfig(t *testing.T) {
	valid := func(t *testing.T) *ProductionConfig {
		t.Helper()
		t.Setenv("DB_PASSWORD", "secret")
		cfg, err := LoadProductionConfig()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*ProductionConfig)
		want   string
	}{
		{"HTTPProviderNeedsURL", func(c *ProductionConfig) {
			c.Ranker.Provider = "http"
			c.Ranker.APIKey = "k"
		}, "RANKER_BASE_URL is required"},
		{"UnknownProvider", func(c *ProductionConfig) { c.ContentGen.Provider = "carrier-pigeon" }, "CONTENT_GEN_PROVIDER must be one of"},
		{"LockShorterThanRun", func(c *ProductionConfig) { c.Autopilot.LockTTL = time.Minute }, "AUTOPILOT_LOCK_TTL"},
		{"ZeroConcurrency", func(c *ProductionConfig) { c.Autopilot.CampaignConcurrency = 0 }, "AUTOPILOT_CAMPAIGN_CONCURRENCY"},
		{"APIKeysRequired", func(c *ProductionConfig) { c.Security.RequireAPIKey = true }, "ALLOWED_API_KEYS"},
		{"BadLogOutput", func(c *ProductionConfig) { c.Logging.Output = "syslog" }, "LOG_OUTPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
