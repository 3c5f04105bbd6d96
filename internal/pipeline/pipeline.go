package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/importer"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

// Outcome summarises one run: the last phase that was entered and whether
// the whole run succeeded.
type Outcome struct {
	Phase     Phase
	Succeeded bool
	Import    types.ImportResult
	Builds    []types.BuildResult
	Deploys   []types.DeployResult
}

// Pipeline runs Import, Build and Deploy for one job. Build runs only after
// a successful import; Deploy runs only when at least one target was built
// and none failed.
type Pipeline struct {
	config    *config.PipelineConfig
	workspace *importer.Workspace
	imports   *ImportManager
	builds    *BuildManager
	deploys   *DeployManager
	metrics   *MetricsCollector
	logger    *zap.Logger
}

func NewPipeline(
	config *config.PipelineConfig,
	workspace *importer.Workspace,
	imports *ImportManager,
	builds *BuildManager,
	deploys *DeployManager,
	metrics *MetricsCollector,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		config:    config,
		workspace: workspace,
		imports:   imports,
		builds:    builds,
		deploys:   deploys,
		metrics:   metrics,
		logger:    logger,
	}
}

func (p *Pipeline) Run(ctx context.Context, jc *types.JobContext, log *runlog.Log) Outcome {
	outcome := p.run(ctx, jc, log)
	p.metrics.ObserveJob(outcome.Phase, outcome.Succeeded)
	p.logger.Info("job processed",
		zap.String("job_id", jc.Job.ID.String()),
		zap.String("phase", string(outcome.Phase)),
		zap.Bool("succeeded", outcome.Succeeded))
	return outcome
}

func (p *Pipeline) run(ctx context.Context, jc *types.JobContext, log *runlog.Log) Outcome {
	project := jc.Project
	outcome := Outcome{Phase: PhaseImport}

	log.Info("Start fetching repository...")
	var commitID string
	if jc.Cursor != nil {
		commitID = jc.Cursor.Commit.ID
	}

	outcome.Import = p.imports.Import(ctx, project, p.credentials(project.RepositoryKind), commitID, log)
	if outcome.Import.HasErrors {
		log.Error("Importing repository did not complete successfully.")
		return outcome
	}
	log.Infof("Project directory: %s", outcome.Import.CheckoutPath)

	outcome.Phase = PhaseBuild
	log.Info("Start building repository...")
	if len(project.BuildTargets) == 0 {
		log.Error("Project doesn't contain build targets.")
		return outcome
	}

	outcome.Builds = p.builds.BuildAll(ctx, outcome.Import.CheckoutPath, project.BuildTargets, log)
	if len(outcome.Builds) == 0 {
		log.Error("No build target produced a result. Skipping deployment.")
		log.Info("End.")
		return outcome
	}
	for _, b := range outcome.Builds {
		if b.HasErrors {
			log.Error("Not all build targets were built successfully. Skipping deployment.")
			log.Info("End.")
			return outcome
		}
	}

	outcome.Phase = PhaseDeploy
	log.Info("Start deploying repository...")
	outcome.Deploys = p.deploys.DeployAll(ctx, outcome.Builds, log)
	p.markLive(outcome.Deploys)

	outcome.Succeeded = len(outcome.Deploys) == len(outcome.Builds)
	for _, d := range outcome.Deploys {
		if d.HasErrors {
			outcome.Succeeded = false
		}
	}
	if !outcome.Succeeded {
		log.Error("Not all deployments ran successfully.")
	}

	log.Info("End.")
	return outcome
}

// markLive pins the checkout of every successful deploy so workspace cleanup
// keeps the content the site is served from.
func (p *Pipeline) markLive(deploys []types.DeployResult) {
	for _, d := range deploys {
		if d.HasErrors {
			continue
		}
		t := d.Build.Target
		site := t.Deploy.SiteKey(t.DeployKind)
		if err := p.workspace.MarkLive(site, d.Build.OutputPath); err != nil {
			p.logger.Warn("failed to record live checkout",
				zap.String("site", site),
				zap.String("path", d.Build.OutputPath),
				zap.Error(err))
		}
	}
}

// ListRecentCommits lists the project's newest commits using the configured
// credentials for its repository kind.
func (p *Pipeline) ListRecentCommits(ctx context.Context, project *types.Project, count int, log *runlog.Log) ([]types.Commit, error) {
	return p.imports.ListRecentCommits(ctx, project, project.RepositoryKind, p.credentials(project.RepositoryKind), count, log)
}

func (p *Pipeline) credentials(kind types.RepositoryKind) *types.AuthInfo {
	return credentialsFor(p.config.Credentials, kind)
}
