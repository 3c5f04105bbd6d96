package types

import (
	"fmt"
	"strings"
)

// DeployConfig is the deploy-kind specific payload of a build target. Exactly
// the member matching the target's DeployKind is expected to be set.
type DeployConfig struct {
	IIS        *IISConfig        `json:"iis,omitempty"`
	Kubernetes *KubernetesConfig `json:"kubernetes,omitempty"`
	Static     *StaticConfig     `json:"static,omitempty"`
}

type IISConfig struct {
	SiteName string `json:"site_name"`
	Port     int    `json:"port"`
}

type KubernetesConfig struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Port      int    `json:"port"`
	Replicas  int32  `json:"replicas"`
}

type StaticConfig struct {
	SiteName string `json:"site_name"`
}

func (c DeployConfig) Validate(kind DeployKind) error {
	switch kind {
	case DeployIIS:
		if c.IIS == nil {
			return fmt.Errorf("%w: missing iis configuration", ErrValidation)
		}
		return c.IIS.Validate()
	case DeployKubernetes:
		if c.Kubernetes == nil {
			return fmt.Errorf("%w: missing kubernetes configuration", ErrValidation)
		}
		return c.Kubernetes.Validate()
	case DeployStatic:
		if c.Static == nil {
			return fmt.Errorf("%w: missing static configuration", ErrValidation)
		}
		return c.Static.Validate()
	default:
		return fmt.Errorf("%w: unsupported deploy kind %q", ErrValidation, kind)
	}
}

func (c *IISConfig) Validate() error {
	if strings.TrimSpace(c.SiteName) == "" {
		return fmt.Errorf("%w: iis site name is required", ErrValidation)
	}
	if c.Port <= 0 {
		return fmt.Errorf("%w: iis port must be positive, got %d", ErrValidation, c.Port)
	}
	return nil
}

func (c *KubernetesConfig) Validate() error {
	if strings.TrimSpace(c.Namespace) == "" {
		return fmt.Errorf("%w: kubernetes namespace is required", ErrValidation)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: kubernetes deployment name is required", ErrValidation)
	}
	if c.Port <= 0 {
		return fmt.Errorf("%w: kubernetes port must be positive, got %d", ErrValidation, c.Port)
	}
	if c.Replicas < 1 {
		return fmt.Errorf("%w: replica count must be at least 1", ErrValidation)
	}
	return nil
}

func (c *StaticConfig) Validate() error {
	name := strings.TrimSpace(c.SiteName)
	if name == "" {
		return fmt.Errorf("%w: static site name is required", ErrValidation)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid static site name %q", ErrValidation, c.SiteName)
	}
	return nil
}

// SiteKey identifies what a deploy of this configuration replaces: two
// targets with the same key serve from whichever deployed last.
func (c DeployConfig) SiteKey(kind DeployKind) string {
	switch {
	case kind == DeployIIS && c.IIS != nil:
		return "iis:" + c.IIS.SiteName
	case kind == DeployKubernetes && c.Kubernetes != nil:
		return "kubernetes:" + c.Kubernetes.Namespace + "/" + c.Kubernetes.Name
	case kind == DeployStatic && c.Static != nil:
		return "static:" + c.Static.SiteName
	default:
		return string(kind)
	}
}
