package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

// PipelineRunner executes the phases of one job.
type PipelineRunner interface {
	Run(ctx context.Context, jc *types.JobContext, log *runlog.Log) pipeline.Outcome
}

// JobAction processes the pending jobs of one project, newest first. Every
// job it picks up ends in the completed state whatever the pipeline did.
type JobAction struct {
	projectID    uuid.UUID
	jobs         JobStore
	pipeline     PipelineRunner
	pollInterval time.Duration
	log          *runlog.Log
	now          func() time.Time
	logger       *zap.Logger
}

func NewJobAction(projectID uuid.UUID, jobs JobStore, pipeline PipelineRunner, pollInterval time.Duration, log *runlog.Log, logger *zap.Logger) *JobAction {
	if pollInterval <= 0 {
		pollInterval = DefaultInterval
	}
	return &JobAction{
		projectID:    projectID,
		jobs:         jobs,
		pipeline:     pipeline,
		pollInterval: pollInterval,
		log:          log,
		now:          time.Now,
		logger:       logger.With(zap.String("project_id", projectID.String())),
	}
}

func (a *JobAction) Run(ctx context.Context) error {
	a.log.Clear()

	created := types.JobStateCreated
	jobs, err := a.jobs.ListJobs(ctx, a.projectID, &created, true)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].Job.CreatedAt.After(jobs[j].Job.CreatedAt)
	})

	for i := range jobs {
		a.process(ctx, &jobs[i])
		a.log.Clear()
	}
	return nil
}

func (a *JobAction) process(ctx context.Context, jc *types.JobContext) {
	id := jc.Job.ID
	logger := a.logger.With(zap.String("job_id", id.String()))
	logger.Info("processing job")

	a.log.Infof("Job %s started.", id)

	if err := a.validate(jc); err != nil {
		a.log.Err(err)
		a.complete(ctx, id, logger)
		return
	}

	started := a.now().UTC()
	a.persist(ctx, id, types.JobUpdate{StartedAt: &started}, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				a.log.Errorf("Unexpected failure: %v", r)
				logger.Error("pipeline panicked", zap.Any("panic", r))
			}
		}()
		a.pipeline.Run(ctx, jc, a.log)
	}()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for running := true; running; {
		select {
		case <-done:
			running = false
		case <-ticker.C:
			a.persist(ctx, id, types.JobUpdate{}, logger)
		}
	}

	a.complete(ctx, id, logger)
}

func (a *JobAction) validate(jc *types.JobContext) error {
	switch {
	case jc.Project == nil:
		return fmt.Errorf("%w: job %s has no project", types.ErrValidation, jc.Job.ID)
	case jc.Project.ID != jc.Job.ProjectID:
		return fmt.Errorf("%w: job %s belongs to another project", types.ErrValidation, jc.Job.ID)
	case jc.Cursor == nil:
		return fmt.Errorf("%w: job %s has no cursor", types.ErrValidation, jc.Job.ID)
	case jc.Cursor.ProjectID != jc.Job.ProjectID:
		return fmt.Errorf("%w: cursor %s does not belong to project %s", types.ErrValidation, jc.Cursor.ID, jc.Job.ProjectID)
	}
	return nil
}

func (a *JobAction) complete(ctx context.Context, id uuid.UUID, logger *zap.Logger) {
	completed := types.JobStateCompleted
	a.persist(ctx, id, types.JobUpdate{State: &completed}, logger)
	logger.Info("job completed")
}

// persist writes the current log snapshot together with update.
func (a *JobAction) persist(ctx context.Context, id uuid.UUID, update types.JobUpdate, logger *zap.Logger) {
	snapshot := a.log.Snapshot()
	update.Log = &snapshot
	if err := a.jobs.UpdateJob(ctx, id, update); err != nil {
		logger.Error("failed to update job", zap.Error(err))
	}
}
