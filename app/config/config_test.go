package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)

	assert.Equal(t, 8791, cfg.API.Port)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, "UTC", cfg.Engine.Timezone)
	assert.Equal(t, "afk", cfg.Auth.TokenPrefix)
	assert.False(t, cfg.Messaging.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := `
[api]
port = 9000
admin_key = secret

[db]
connection = sqlite:///tmp/x.db
debug = true

[engine]
workers = 8
claim_ttl_seconds = 60
timezone = Europe/Paris
plugins = acme.sync=unix:///run/acme.sock, broken, ledger.export = tcp://127.0.0.1:9400

[auth]
default_rate_limit = 10

[messaging]
enabled = true
exchange = events
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "secret", cfg.API.AdminKey)
	assert.Equal(t, "sqlite:///tmp/x.db", cfg.Database.Connection)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, "Europe/Paris", cfg.Engine.Timezone)
	assert.Equal(t, map[string]string{
		"acme.sync":     "unix:///run/acme.sock",
		"ledger.export": "tcp://127.0.0.1:9400",
	}, cfg.Engine.Plugins)
	assert.Equal(t, 60, int(cfg.Engine.ClaimTTLDuration().Seconds()))
	assert.Equal(t, 10, cfg.Auth.DefaultRateLimit)
	assert.True(t, cfg.Messaging.Enabled)
	assert.Equal(t, "events", cfg.Messaging.Exchange)
}
