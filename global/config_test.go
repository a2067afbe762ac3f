package global

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/ws", cfg.Server.WSPath)
	assert.EqualValues(t, 65536, cfg.Gateway.MaxFrameBytes)
	assert.Equal(t, 30*time.Second, cfg.Gateway.PingInterval)
	assert.Equal(t, time.Minute, cfg.Gateway.MessageWindow)
	assert.EqualValues(t, 120, cfg.Gateway.MessageLimit)
	assert.Equal(t, 2*time.Second, cfg.Gateway.DedupeCooldown)
	assert.Equal(t, map[string]int{"free": 1, "pro": 5, "enterprise": 100}, cfg.Gateway.TierLimits)
	assert.NotEmpty(t, cfg.Gateway.ID, "instance id is always resolved")
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
gateway:
  id: gw-custom
  message_limit: 7
  ping_interval: 5s
  tier_limits:
    free: 2
auth:
  secret: test-secret
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "gw-custom", cfg.Gateway.ID)
	assert.EqualValues(t, 7, cfg.Gateway.MessageLimit)
	assert.Equal(t, 5*time.Second, cfg.Gateway.PingInterval)
	assert.Equal(t, map[string]int{"free": 2}, cfg.Gateway.TierLimits)
	assert.Equal(t, "test-secret", cfg.Auth.Secret)
	// untouched keys keep their defaults
	assert.Equal(t, "/ws", cfg.Server.WSPath)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGatewayIDFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_ID", "gw-from-env")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gw-from-env", cfg.Gateway.ID)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("COLLAB_SERVER_ADDR", ":7070")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}
