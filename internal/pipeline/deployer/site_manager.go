package deployer

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/shell"
)

const defaultAppCmdPath = `C:\Windows\System32\inetsrv\appcmd.exe`

type Site struct {
	Name     string
	Bindings string
	State    string
}

// SiteManager is the administrative API of an IIS host.
type SiteManager interface {
	ListSites(ctx context.Context) ([]Site, error)
	AddSite(ctx context.Context, name, physicalPath string, port int) error
	StopSite(ctx context.Context, name string) error
	SetPhysicalPath(ctx context.Context, name, physicalPath string) error
	StartSite(ctx context.Context, name string) error
}

// AppCmdSiteManager drives IIS through appcmd.exe. Every appcmd invocation
// commits its own change to the configuration store.
type AppCmdSiteManager struct {
	path   string
	runner shell.Runner
}

func NewAppCmdSiteManager(cfg *config.IISConfig, runner shell.Runner) *AppCmdSiteManager {
	path := cfg.AppCmdPath
	if path == "" {
		path = defaultAppCmdPath
	}
	return &AppCmdSiteManager{path: path, runner: runner}
}

type appCmdSites struct {
	Sites []struct {
		Name     string `xml:"SITE.NAME,attr"`
		Bindings string `xml:"bindings,attr"`
		State    string `xml:"state,attr"`
	} `xml:"SITE"`
}

func (m *AppCmdSiteManager) ListSites(ctx context.Context) ([]Site, error) {
	out, err := m.run(ctx, "list", "site", "/xml")
	if err != nil {
		return nil, err
	}

	var parsed appCmdSites
	if err := xml.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse site list: %w", err)
	}

	sites := make([]Site, 0, len(parsed.Sites))
	for _, s := range parsed.Sites {
		sites = append(sites, Site{Name: s.Name, Bindings: s.Bindings, State: s.State})
	}
	return sites, nil
}

func (m *AppCmdSiteManager) AddSite(ctx context.Context, name, physicalPath string, port int) error {
	_, err := m.run(ctx, "add", "site",
		"/name:"+name,
		fmt.Sprintf("/bindings:http/*:%d:", port),
		"/physicalPath:"+physicalPath)
	return err
}

func (m *AppCmdSiteManager) StopSite(ctx context.Context, name string) error {
	_, err := m.run(ctx, "stop", "site", "/site.name:"+name)
	return err
}

func (m *AppCmdSiteManager) SetPhysicalPath(ctx context.Context, name, physicalPath string) error {
	_, err := m.run(ctx, "set", "vdir", "/vdir.name:"+name+"/", "/physicalPath:"+physicalPath)
	return err
}

func (m *AppCmdSiteManager) StartSite(ctx context.Context, name string) error {
	_, err := m.run(ctx, "start", "site", "/site.name:"+name)
	return err
}

func (m *AppCmdSiteManager) run(ctx context.Context, args ...string) (string, error) {
	out, err := m.runner.Run(ctx, "", m.path, args...)
	if err != nil {
		return out, fmt.Errorf("appcmd %s: %w: %s", strings.Join(args[:2], " "), err, strings.TrimSpace(out))
	}
	return out, nil
}
