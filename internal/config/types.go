package config

import (
	"fmt"
	"time"

	pipelineconfig "github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/scheduler"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host,
		c.User,
		c.Password,
		c.Name,
		c.Port,
		c.SSLMode,
	)
}

// RedisConfig configures the commit list cache. An empty Addr disables it.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	CommitTTL time.Duration `mapstructure:"commit_ttl"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenExpiration time.Duration `mapstructure:"token_expiration"`
	MaxFailedLogins int           `mapstructure:"max_failed_logins"`
	LockDuration    time.Duration `mapstructure:"lock_duration"`
}

type AppConfig struct {
	Server    ServerConfig                  `mapstructure:"server"`
	Database  DatabaseConfig                `mapstructure:"database"`
	Redis     RedisConfig                   `mapstructure:"redis"`
	Auth      AuthConfig                    `mapstructure:"auth"`
	Scheduler scheduler.Config              `mapstructure:"scheduler"`
	Pipeline  pipelineconfig.PipelineConfig `mapstructure:"pipeline"`
}
