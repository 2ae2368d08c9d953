// pkg/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTestConfig(t, `
app:
  name: stockradar
  env: test
price_source:
  api_key: test-key
  base_url: http://localhost:9001
  timeout: 5s
chat:
  token: test-token
  base_url: http://localhost:9002
  timeout: 3s
poll:
  interval: 30s
  concurrency: 8
  alert_channel_name: price-alerts
billing:
  term_days: 30
  free_plan_name: Free
  sku_plans:
    "1329843851798771362": PRO
api:
  port: "8080"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "stockradar", cfg.App.Name)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval.Std())
	assert.Equal(t, 8, cfg.Poll.Concurrency)
	assert.Equal(t, "price-alerts", cfg.Poll.AlertChannelName)
	assert.Equal(t, 5*time.Second, cfg.PriceSource.Timeout.Std())
	assert.Equal(t, 3*time.Second, cfg.Chat.Timeout.Std())
	assert.Equal(t, "PRO", cfg.Billing.SKUPlans["1329843851798771362"])
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTestConfig(t, `
app:
  name: stockradar
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Poll.Interval.Std())
	assert.Equal(t, 4, cfg.Poll.Concurrency)
	assert.Equal(t, "stock-alerts", cfg.Poll.AlertChannelName)
	assert.Equal(t, 30, cfg.Billing.TermDays)
	assert.Equal(t, "Free", cfg.Billing.FreePlanName)
	assert.Equal(t, 10*time.Second, cfg.PriceSource.Timeout.Std())
	assert.Equal(t, 10*time.Second, cfg.Chat.Timeout.Std())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeTestConfig(t, `
price_source:
  api_key: file-key
chat:
  token: file-token
`)

	t.Setenv("PRICE_API_KEY", "env-key")
	t.Setenv("CHAT_TOKEN", "env-token")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.PriceSource.APIKey)
	assert.Equal(t, "env-token", cfg.Chat.Token)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	path := writeTestConfig(t, `
poll:
  interval: sixty-seconds
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
