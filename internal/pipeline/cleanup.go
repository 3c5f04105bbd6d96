package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/importer"
)

const (
	defaultCleanupMaxAge  = 24 * time.Hour
	defaultKeepPerProject = 3
)

// CleanupManager prunes old checkout directories from the workspace. The
// newest KeepPerProject checkouts of each project are always kept, as is any
// checkout a deployed site is still served from.
type CleanupManager struct {
	workspace      *importer.Workspace
	maxAge         time.Duration
	keepPerProject int
	now            func() time.Time
	logger         *zap.Logger
}

func NewCleanupManager(cfg *config.CleanupConfig, workspace *importer.Workspace, logger *zap.Logger) *CleanupManager {
	cm := &CleanupManager{
		workspace:      workspace,
		maxAge:         cfg.MaxAge,
		keepPerProject: cfg.KeepPerProject,
		now:            time.Now,
		logger:         logger,
	}
	if cm.maxAge <= 0 {
		cm.maxAge = defaultCleanupMaxAge
	}
	if cm.keepPerProject <= 0 {
		cm.keepPerProject = defaultKeepPerProject
	}
	return cm
}

type checkoutDir struct {
	path    string
	modTime time.Time
}

// Run removes expired checkouts. It satisfies the scheduler's action
// contract so it can be driven by a Runner.
func (cm *CleanupManager) Run(_ context.Context) error {
	entries, err := os.ReadDir(cm.workspace.Root())
	if err != nil {
		return fmt.Errorf("failed to read workspace directory: %w", err)
	}

	live, err := cm.workspace.LiveCheckouts()
	if err != nil {
		return fmt.Errorf("failed to read live checkouts: %w", err)
	}

	byProject := make(map[string][]checkoutDir)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			cm.logger.Warn("failed to get directory info",
				zap.String("dir", entry.Name()),
				zap.Error(err))
			continue
		}

		project := projectOf(entry.Name())
		byProject[project] = append(byProject[project], checkoutDir{
			path:    filepath.Join(cm.workspace.Root(), entry.Name()),
			modTime: info.ModTime(),
		})
	}

	cutoff := cm.now().Add(-cm.maxAge)
	removed := 0
	for project, dirs := range byProject {
		sort.Slice(dirs, func(i, j int) bool {
			return dirs[i].modTime.After(dirs[j].modTime)
		})

		for i, dir := range dirs {
			if i < cm.keepPerProject || dir.modTime.After(cutoff) {
				continue
			}
			if _, ok := live[dir.path]; ok {
				cm.logger.Debug("keeping live checkout",
					zap.String("project", project),
					zap.String("path", dir.path))
				continue
			}
			if err := cm.workspace.Cleanup(dir.path); err != nil {
				cm.logger.Error("failed to remove old checkout",
					zap.String("project", project),
					zap.String("path", dir.path),
					zap.Error(err))
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		cm.logger.Info("removed old checkouts", zap.Int("count", removed))
	}
	return nil
}

// projectOf recovers the directory prefix a checkout was created with.
func projectOf(dirName string) string {
	i := strings.LastIndex(dirName, "_")
	if i < 0 {
		return dirName
	}
	return dirName[:i]
}
