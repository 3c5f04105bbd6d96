package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeployConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		kind    DeployKind
		config  DeployConfig
		wantErr bool
	}{
		{
			name:   "valid iis",
			kind:   DeployIIS,
			config: DeployConfig{IIS: &IISConfig{SiteName: "web1", Port: 8080}},
		},
		{
			name:    "iis without payload",
			kind:    DeployIIS,
			config:  DeployConfig{Static: &StaticConfig{SiteName: "web1"}},
			wantErr: true,
		},
		{
			name:    "iis blank site",
			kind:    DeployIIS,
			config:  DeployConfig{IIS: &IISConfig{SiteName: "  ", Port: 8080}},
			wantErr: true,
		},
		{
			name:    "iis zero port",
			kind:    DeployIIS,
			config:  DeployConfig{IIS: &IISConfig{SiteName: "web1"}},
			wantErr: true,
		},
		{
			name: "valid kubernetes",
			kind: DeployKubernetes,
			config: DeployConfig{Kubernetes: &KubernetesConfig{
				Namespace: "default", Name: "web", Port: 8080, Replicas: 1,
			}},
		},
		{
			name: "kubernetes without replicas",
			kind: DeployKubernetes,
			config: DeployConfig{Kubernetes: &KubernetesConfig{
				Namespace: "default", Name: "web", Port: 8080,
			}},
			wantErr: true,
		},
		{
			name:   "valid static",
			kind:   DeployStatic,
			config: DeployConfig{Static: &StaticConfig{SiteName: "docs"}},
		},
		{
			name:    "static site escaping root",
			kind:    DeployStatic,
			config:  DeployConfig{Static: &StaticConfig{SiteName: "../etc"}},
			wantErr: true,
		},
		{
			name:    "unsupported kind",
			kind:    DeployKind("ftp"),
			config:  DeployConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate(tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUnknownStrategyError_Is(t *testing.T) {
	err := error(&UnknownStrategyError{Kind: "cvs"})
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "cvs")
}

func TestDeployConfig_SiteKey(t *testing.T) {
	assert.Equal(t, "iis:web1", DeployConfig{IIS: &IISConfig{SiteName: "web1", Port: 8080}}.SiteKey(DeployIIS))
	assert.Equal(t, "kubernetes:web/site", DeployConfig{Kubernetes: &KubernetesConfig{Namespace: "web", Name: "site"}}.SiteKey(DeployKubernetes))
	assert.Equal(t, "static:shop", DeployConfig{Static: &StaticConfig{SiteName: "shop"}}.SiteKey(DeployStatic))
	assert.Equal(t, "static", DeployConfig{IIS: &IISConfig{SiteName: "web1"}}.SiteKey(DeployStatic))
}
