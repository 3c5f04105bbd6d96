package scheduler

import (
	"context"

	"github.com/google/uuid"

	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type ProjectLister interface {
	ListProjects(ctx context.Context) ([]types.Project, error)
}

type JobStore interface {
	// ListJobs returns the project's jobs, optionally filtered by state, with
	// their cursor attached and their project attached when includeProject
	// is set.
	ListJobs(ctx context.Context, projectID uuid.UUID, state *types.JobState, includeProject bool) ([]types.JobContext, error)
	UpdateJob(ctx context.Context, id uuid.UUID, update types.JobUpdate) error
}
