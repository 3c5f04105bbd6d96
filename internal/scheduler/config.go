package scheduler

import "time"

type Config struct {
	RunnerInterval     time.Duration `mapstructure:"runner_interval"`
	SupervisorInterval time.Duration `mapstructure:"supervisor_interval"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
}
