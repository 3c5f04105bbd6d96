package config

import (
	"time"

	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type PipelineConfig struct {
	BaseDirectory string                    `mapstructure:"base_directory"`
	LogMaxBytes   int                       `mapstructure:"log_max_bytes"`
	Cleanup       CleanupConfig             `mapstructure:"cleanup"`
	Credentials   map[string]types.AuthInfo `mapstructure:"credentials"` // keyed by repository kind
	Svn           SvnConfig                 `mapstructure:"svn"`
	Build         BuildConfig               `mapstructure:"build"`
	Deploy        DeployConfig              `mapstructure:"deploy"`
}

type CleanupConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxAge         time.Duration `mapstructure:"max_age"`
	KeepPerProject int           `mapstructure:"keep_per_project"`
}

type SvnConfig struct {
	Binary string `mapstructure:"binary"`
}

type BuildConfig struct {
	DotNet DotNetConfig `mapstructure:"dotnet"`
	Docker DockerConfig `mapstructure:"docker"`
}

type DotNetConfig struct {
	Binary        string `mapstructure:"binary"`
	Configuration string `mapstructure:"configuration"`
	Runtime       string `mapstructure:"runtime"`
}

type DockerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ArtifactPath string `mapstructure:"artifact_path"` // path inside the built image
}

type DeployConfig struct {
	IIS        IISConfig        `mapstructure:"iis"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`
	Static     StaticConfig     `mapstructure:"static"`
}

type IISConfig struct {
	AppCmdPath string `mapstructure:"appcmd_path"`
}

type KubernetesConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Kubeconfig   string `mapstructure:"kubeconfig"`
	DefaultImage string `mapstructure:"default_image"`
}

type StaticConfig struct {
	Root string `mapstructure:"root"`
}
