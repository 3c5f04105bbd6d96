package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/elskow/corona-deployments/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const envPrefix = "CORONA"

// LoadConfig reads config/server/config.toml, or the file named by
// CORONA_CONFIG_PATH, and applies CORONA_* environment overrides.
func LoadConfig() (*config.AppConfig, error) {
	path := os.Getenv(envPrefix + "_CONFIG_PATH")
	if path == "" {
		path = filepath.Join("config", "server", "config.toml")
	}
	return LoadConfigFrom(path)
}

func LoadConfigFrom(path string) (*config.AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config config.AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret must be set")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "9090")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "corona")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "corona")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.commit_ttl", 5*time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiration", 12*time.Hour)
	v.SetDefault("auth.max_failed_logins", 5)
	v.SetDefault("auth.lock_duration", 15*time.Minute)

	v.SetDefault("scheduler.runner_interval", 5*time.Second)
	v.SetDefault("scheduler.supervisor_interval", 5*time.Second)
	v.SetDefault("scheduler.poll_interval", 5*time.Second)
	v.SetDefault("scheduler.cleanup_interval", time.Hour)

	v.SetDefault("pipeline.base_directory", filepath.Join(os.TempDir(), "corona"))
	v.SetDefault("pipeline.log_max_bytes", 1<<20)
	v.SetDefault("pipeline.cleanup.enabled", false)
	v.SetDefault("pipeline.cleanup.max_age", 24*time.Hour)
	v.SetDefault("pipeline.cleanup.keep_per_project", 3)
	v.SetDefault("pipeline.svn.binary", "svn")
	v.SetDefault("pipeline.build.dotnet.binary", "dotnet")
	v.SetDefault("pipeline.build.dotnet.configuration", "Release")
	v.SetDefault("pipeline.build.dotnet.runtime", "win-x64")
	v.SetDefault("pipeline.build.docker.enabled", false)
	v.SetDefault("pipeline.build.docker.artifact_path", "/app/publish")
	v.SetDefault("pipeline.deploy.iis.appcmd_path", `C:\Windows\System32\inetsrv\appcmd.exe`)
	v.SetDefault("pipeline.deploy.kubernetes.enabled", false)
	v.SetDefault("pipeline.deploy.kubernetes.kubeconfig", "")
	v.SetDefault("pipeline.deploy.kubernetes.default_image", "nginx:alpine")
	v.SetDefault("pipeline.deploy.static.root", "/var/www/html")
}
