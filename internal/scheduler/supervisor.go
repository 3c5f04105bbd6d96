package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

// ActionFactory builds the per-tick action of a newly discovered project.
type ActionFactory func(project types.Project) Action

// Supervisor discovers projects on every tick and allocates one Runner per
// project name. Allocated runners live until the Supervisor is stopped.
type Supervisor struct {
	projects       ProjectLister
	newAction      ActionFactory
	runnerInterval time.Duration
	metrics        Metrics
	logger         *zap.Logger
	loop           *Runner

	mu      sync.Mutex
	runners map[string]*Runner
	stopped bool
}

func NewSupervisor(projects ProjectLister, newAction ActionFactory, cfg *Config, metrics Metrics, logger *zap.Logger) *Supervisor {
	s := &Supervisor{
		projects:       projects,
		newAction:      newAction,
		runnerInterval: cfg.RunnerInterval,
		metrics:        metrics,
		logger:         logger,
		runners:        make(map[string]*Runner),
	}
	s.loop = NewRunner("supervisor", ActionFunc(s.Run), cfg.SupervisorInterval, metrics, logger)
	return s
}

func (s *Supervisor) Start() {
	s.logger.Info("starting supervisor")
	s.loop.Start()
}

// Stop stops every allocated runner, forgets them and then stops the
// supervisor's own loop.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, r := range s.runners {
		r.Stop()
	}
	count := len(s.runners)
	s.runners = make(map[string]*Runner)
	s.mu.Unlock()

	s.loop.Stop()
	s.metrics.SetRunners(0)
	s.logger.Info("supervisor stopped", zap.Int("runners", count))
}

// Run is one supervisor tick.
func (s *Supervisor) Run(ctx context.Context) error {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	for _, p := range projects {
		if _, ok := s.runners[p.Name]; ok {
			continue
		}

		r := NewRunner(p.Name, s.newAction(p), s.runnerInterval, s.metrics, s.logger)
		s.runners[p.Name] = r
		r.Start()

		s.logger.Info("allocated runner",
			zap.String("project", p.Name),
			zap.String("project_id", p.ID.String()))
	}
	s.metrics.SetRunners(len(s.runners))

	return nil
}

// Runners returns the names of the allocated runners in sorted order.
func (s *Supervisor) Runners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.runners))
	for name := range s.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
