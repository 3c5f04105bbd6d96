package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[server]
port = "9191"

[database]
host = "db.internal"
port = 6543

[auth]
jwt_secret = "from-file"

[scheduler]
runner_interval = "2s"

[pipeline]
base_directory = "/srv/corona"

[pipeline.credentials.git]
username = "ci"
password = "token"

[pipeline.deploy.kubernetes]
enabled = true
default_image = "nginx:1.27"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFrom(t *testing.T) {
	path := writeConfig(t, testConfig)

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9191", cfg.Server.Addr())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)

	assert.Equal(t, 2*time.Second, cfg.Scheduler.RunnerInterval)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, time.Hour, cfg.Scheduler.CleanupInterval)

	assert.Equal(t, "/srv/corona", cfg.Pipeline.BaseDirectory)
	assert.Equal(t, 1<<20, cfg.Pipeline.LogMaxBytes)
	require.Contains(t, cfg.Pipeline.Credentials, "git")
	assert.Equal(t, "ci", cfg.Pipeline.Credentials["git"].Username)
	assert.True(t, cfg.Pipeline.Deploy.Kubernetes.Enabled)
	assert.Equal(t, "nginx:1.27", cfg.Pipeline.Deploy.Kubernetes.DefaultImage)
	assert.Equal(t, "Release", cfg.Pipeline.Build.DotNet.Configuration)

	assert.Equal(t, 5*time.Minute, cfg.Redis.CommitTTL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenExpiration)
}

func TestLoadConfigFrom_EnvOverrides(t *testing.T) {
	path := writeConfig(t, testConfig)
	t.Setenv("CORONA_AUTH_JWT_SECRET", "from-env")
	t.Setenv("CORONA_REDIS_ADDR", "redis:6379")
	t.Setenv("CORONA_SCHEDULER_POLL_INTERVAL", "750ms")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 750*time.Millisecond, cfg.Scheduler.PollInterval)
}

func TestLoadConfigFrom_MissingFile(t *testing.T) {
	t.Setenv("CORONA_AUTH_JWT_SECRET", "secret")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "/app/publish", cfg.Pipeline.Build.Docker.ArtifactPath)
}

func TestLoadConfigFrom_RequiresSecret(t *testing.T) {
	_, err := LoadConfigFrom(writeConfig(t, "[server]\nport = \"1\"\n"))
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestLoadConfig_PathFromEnv(t *testing.T) {
	t.Setenv("CORONA_CONFIG_PATH", writeConfig(t, testConfig))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{EnvDevelopment, EnvProduction, EnvTesting, ""} {
		logger, err := NewLogger(env)
		require.NoError(t, err, env)
		assert.NotNil(t, logger)
	}
}
