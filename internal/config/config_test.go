package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DOCTORCONNECT_JWT_SECRET", "s3cret")
	t.Setenv("DOCTORCONNECT_DATABASE_HOST", "db.internal")
	t.Setenv("DOCTORCONNECT_DATABASE_MAX_OPEN_CONNS", "7")
	t.Setenv("DOCTORCONNECT_OUTBOX_POLL_INTERVAL", "2s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 7, cfg.Database.MaxOpenConns)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := []byte(`
server:
  port: 9090
jwt:
  secret: from-file
redis:
  enabled: false
rate_limit:
  requests_per_second: 5
  burst: 10
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret is required")
}

func TestConversions(t *testing.T) {
	o := OutboxConfig{BatchSize: 10, MaxDeliveries: 4, ChannelPrefix: "dc"}
	wc := o.ToWorkerConfig()
	assert.Equal(t, 10, wc.BatchSize)
	assert.Equal(t, 4, wc.MaxDeliveries)
	assert.Equal(t, "dc", wc.ChannelPrefix)

	r := RedisConfig{URL: "redis://x:6379", MaxFailures: 3}
	bc := r.ToBrokerConfig()
	assert.Equal(t, "redis://x:6379", bc.URL)
	assert.Equal(t, 3, bc.MaxFailures)
}
