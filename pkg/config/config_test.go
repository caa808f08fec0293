package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "^GSPC", c.Analytics.DefaultTicker)
	assert.Equal(t, 252, c.Analytics.Lookback)
	assert.Equal(t, 63, c.Analytics.TestWindow)
	assert.Equal(t, 5, c.Analytics.PurgeGap)
	assert.Equal(t, 10000.0, c.Analytics.InitialCapital)
	assert.Equal(t, 12*time.Hour, c.Market.Upstream.CacheTTL)
	assert.Equal(t, 24*time.Hour, c.Macro.Upstream.CacheTTL)
	assert.Equal(t, "none", c.Store.Backend)
	assert.True(t, c.Metrics.Enabled)
	assert.True(t, c.Server.RateLimit.Enabled)
	assert.Equal(t, 5.0, c.Server.RateLimit.PerSecond)
	assert.Equal(t, 10, c.Server.RateLimit.Burst)
	assert.Equal(t, 10*time.Minute, c.Server.RateLimit.IdleTTL)
}

func TestYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
metrics:
  enabled: false
analytics:
  default_ticker: "^IXIC"
store:
  backend: postgres
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.False(t, c.Metrics.Enabled, "explicit false survives defaults")
	assert.Equal(t, "^IXIC", c.Analytics.DefaultTicker)
	assert.Equal(t, "postgres", c.Store.Backend)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestZeroPurgeGapIsAllowed(t *testing.T) {
	c, err := Load(writeConfig(t, "analytics:\n  purge_gap: 0\nserver:\n  rate_limit:\n    enabled: false\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Analytics.PurgeGap)
	assert.False(t, c.Server.RateLimit.Enabled)
}

func TestValidationFailures(t *testing.T) {
	for name, body := range map[string]string{
		"bad store":    "store:\n  backend: mongo\n",
		"bad port":     "server:\n  port: 70000\n",
		"kafka empty":  "kafka:\n  enabled: true\n  brokers: []\n",
		"window order": "analytics:\n  lookback: 10\n  test_window: 20\n",
		"rate burst":   "server:\n  rate_limit:\n    burst: 0\n",
		"purge gap":    "analytics:\n  purge_gap: -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FRED_API_KEY", "secret")
	t.Setenv("MACROPULSE_TICKER", "^DJI")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("PORT", "9090")

	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, "secret", c.Macro.APIKey)
	assert.Equal(t, "^DJI", c.Analytics.DefaultTicker)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "redis", c.Cache.Backend)
	assert.Equal(t, "cache:6379", c.Cache.Redis.Addr)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestMalformedPortKeepsDefault(t *testing.T) {
	t.Setenv("PORT", "eighty")
	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
