package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PULSEPAGE_DATABASE__URL", "postgres://localhost/pulsepage")
	t.Setenv("PULSEPAGE_REDIS__URL", "redis://localhost:6379/0")
	t.Setenv("PULSEPAGE_JWT__SECRET_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Realtime.NotificationCapacity)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenDuration)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "3000"
database:
  url: postgres://file-host/db
redis:
  url: redis://file-host:6379/0
jwt:
  secret_key: file-secret
realtime:
  notification_capacity: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PULSEPAGE_SERVER__PORT", "4000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, "postgres://file-host/db", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Realtime.NotificationCapacity)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing database url",
			env: map[string]string{
				"PULSEPAGE_REDIS__URL":      "redis://localhost:6379/0",
				"PULSEPAGE_JWT__SECRET_KEY": "secret",
			},
		},
		{
			name: "missing redis url",
			env: map[string]string{
				"PULSEPAGE_DATABASE__URL":   "postgres://localhost/db",
				"PULSEPAGE_JWT__SECRET_KEY": "secret",
			},
		},
		{
			name: "missing jwt secret",
			env: map[string]string{
				"PULSEPAGE_DATABASE__URL": "postgres://localhost/db",
				"PULSEPAGE_REDIS__URL":    "redis://localhost:6379/0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
