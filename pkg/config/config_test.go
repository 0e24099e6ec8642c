package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 180*time.Second, c.Signals.CacheTTL)
	assert.Equal(t, 3, c.Signals.TopN)
	assert.Equal(t, 92, c.Signals.PayoutTier)
	assert.Equal(t, 2, c.Signals.LossThreshold)
	assert.Equal(t, time.Hour, c.Signals.Cooldown)
	assert.True(t, c.Signals.RanksFallbacks())
	assert.Equal(t, 30*time.Second, c.MarketData.CacheTTL)
	assert.Equal(t, "signalbot.signals", c.Kafka.SignalsTopic)
	assert.Empty(t, c.Catalog)
}

func TestParse_RankFallbacksOptOut(t *testing.T) {
	c, err := Parse([]byte("signals:\n  rank_fallbacks: false\n"))
	require.NoError(t, err)
	assert.False(t, c.Signals.RanksFallbacks())

	assert.True(t, Signals{}.RanksFallbacks())
}

func TestParse_Durations(t *testing.T) {
	c, err := Parse([]byte(`
signals:
  cache_ttl: 90s
  cooldown: 30m
priority_timeouts:
  vip: 12s
`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, c.Signals.CacheTTL)
	assert.Equal(t, 30*time.Minute, c.Signals.Cooldown)
	assert.Equal(t, 12*time.Second, c.Priorities["vip"])
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"confidence window": "signals:\n  min_confidence: 95\n  max_confidence: 90\n",
		"unknown class":     "scan_plan:\n  weekly:\n    timeframes: [1W]\n    groups: [{group: forex}]\n",
		"kafka brokers":     "kafka:\n  enabled: true\n",
		"telegram token":    "redis:\n  enabled: true\ntelegram:\n  enabled: true\n",
		"telegram redis":    "telegram:\n  enabled: true\n  bot_token: x\n",
		"openrouter key":    "openrouter:\n  enabled: true\n",
		"empty group":       "catalog:\n  - name: forex\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	env := map[string]string{
		"TELEGRAM_BOT_TOKEN": "123:abc",
		"KAFKA_BROKERS":      "k1:9092,k2:9092",
		"HTTP_PORT":          "9090",
	}
	require.NoError(t, c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, "123:abc", c.Telegram.BotToken)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9090, c.Server.Port)

	env["HTTP_PORT"] = "eighty"
	assert.Error(t, c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8181\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, c.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "signalbot.outcomes", c.Kafka.OutcomesTopic)
	assert.Equal(t, "https://query1.finance.yahoo.com/v8/finance/chart", c.MarketData.BaseURL)
	assert.False(t, c.Telegram.Enabled)
}

func TestLoadWithEnv_SecretsOnlyInEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
redis:
  enabled: true
telegram:
  enabled: true
`), 0o600))

	// the file alone lacks the token
	_, err := Load(path)
	require.Error(t, err)

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", c.Telegram.BotToken)
}
