package config

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

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8095, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5984", cfg.CouchDB.URL)
	assert.Equal(t, "dockhand", cfg.CouchDB.Database)
	assert.Equal(t, 10*time.Second, cfg.Docker.ConnectTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Docker.CommandTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Docker.IdleTimeout)
	assert.Equal(t, "/var/lib/dockhand/stacks", cfg.Docker.StackDir)
	assert.Equal(t, "/etc/dockhand/credentials", cfg.Credentials.Path)
	assert.False(t, cfg.Security.AuthEnabled)
	assert.Equal(t, 24*time.Hour, cfg.Security.JWTExpiration)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
docker:
  command_timeout: 5m
  stack_dir: /srv/stacks
security:
  auth_enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Docker.CommandTimeout)
	assert.Equal(t, "/srv/stacks", cfg.Docker.StackDir)
	assert.True(t, cfg.Security.AuthEnabled)

	// Untouched keys keep their defaults.
	assert.Equal(t, "dockhand", cfg.CouchDB.Database)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	t.Setenv("DH_SERVER_PORT", "9191")
	t.Setenv("DH_DOCKER_COMMAND_TIMEOUT", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Docker.CommandTimeout)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("DH_SERVER_PORT", "99999")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("DH_DOCKER_COMMAND_TIMEOUT", "0s")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command_timeout")
}

func TestLoadRejectsMalformedExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestGetReturnsLastLoaded(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Same(t, cfg, Get())
}
