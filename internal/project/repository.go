package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrCursorMismatch = errors.New("cursor does not belong to project")
)

type Repository interface {
	CreateProject(ctx context.Context, p types.Project) (types.Project, error)
	ListProjects(ctx context.Context) ([]types.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (types.Project, error)
	GetProjectByName(ctx context.Context, name string) (types.Project, error)
	CreateBuildTarget(ctx context.Context, t types.BuildTarget) (types.BuildTarget, error)
	CreateCursor(ctx context.Context, c types.Cursor) (types.Cursor, error)
	CreateJob(ctx context.Context, projectID, cursorID, createdBy uuid.UUID) (types.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (types.JobContext, error)
	ListJobs(ctx context.Context, projectID uuid.UUID, state *types.JobState, includeProject bool) ([]types.JobContext, error)
	UpdateJob(ctx context.Context, id uuid.UUID, update types.JobUpdate) error
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) CreateProject(ctx context.Context, p types.Project) (types.Project, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.RepositoryURL) == "" {
		return types.Project{}, fmt.Errorf("%w: project name and repository url are required", types.ErrValidation)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}

	row := projectFromDomain(p)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return types.Project{}, fmt.Errorf("failed to create project: %w", err)
	}
	return row.toDomain(), nil
}

func (r *repository) ListProjects(ctx context.Context) ([]types.Project, error) {
	var rows []Project
	err := r.withChildren(r.db.WithContext(ctx)).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]types.Project, 0, len(rows))
	for i := range rows {
		projects = append(projects, rows[i].toDomain())
	}
	return projects, nil
}

func (r *repository) GetProject(ctx context.Context, id uuid.UUID) (types.Project, error) {
	return r.getProject(ctx, "id = ?", id)
}

func (r *repository) GetProjectByName(ctx context.Context, name string) (types.Project, error) {
	return r.getProject(ctx, "name = ?", name)
}

func (r *repository) getProject(ctx context.Context, query string, arg any) (types.Project, error) {
	var row Project
	if err := r.withChildren(r.db.WithContext(ctx)).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return row.toDomain(), nil
}

// withChildren preloads build targets in creation order and cursors newest first.
func (r *repository) withChildren(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("BuildTargets", func(db *gorm.DB) *gorm.DB {
			return db.Order("build_targets.created_at")
		}).
		Preload("Cursors", func(db *gorm.DB) *gorm.DB {
			return db.Order("repository_cursors.created_at DESC")
		})
}

func (r *repository) CreateBuildTarget(ctx context.Context, t types.BuildTarget) (types.BuildTarget, error) {
	if err := t.Deploy.Validate(t.DeployKind); err != nil {
		return types.BuildTarget{}, err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC()
	}

	row := buildTargetFromDomain(t)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return types.BuildTarget{}, fmt.Errorf("failed to create build target: %w", err)
	}
	return row.toDomain(), nil
}

func (r *repository) CreateCursor(ctx context.Context, c types.Cursor) (types.Cursor, error) {
	if strings.TrimSpace(c.Commit.ID) == "" {
		return types.Cursor{}, fmt.Errorf("%w: cursor needs a commit id", types.ErrValidation)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}

	row := cursorFromDomain(c)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return types.Cursor{}, fmt.Errorf("failed to create cursor: %w", err)
	}
	return row.toDomain(), nil
}

func (r *repository) CreateJob(ctx context.Context, projectID, cursorID, createdBy uuid.UUID) (types.Job, error) {
	var row Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cursor Cursor
		if err := tx.Where("id = ?", cursorID).First(&cursor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if cursor.ProjectID != projectID {
			return ErrCursorMismatch
		}

		row = Job{
			ID:        uuid.New(),
			ProjectID: projectID,
			CursorID:  cursorID,
			State:     string(types.JobStateCreated),
			CreatedAt: r.now().UTC(),
			CreatedBy: createdBy,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return types.Job{}, err
	}
	return row.toDomain().Job, nil
}

func (r *repository) GetJob(ctx context.Context, id uuid.UUID) (types.JobContext, error) {
	var row Job
	err := r.db.WithContext(ctx).
		Preload("Project.BuildTargets").
		Preload("Cursor").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.JobContext{}, ErrNotFound
		}
		return types.JobContext{}, err
	}
	return row.toDomain(), nil
}

func (r *repository) ListJobs(ctx context.Context, projectID uuid.UUID, state *types.JobState, includeProject bool) ([]types.JobContext, error) {
	tx := r.db.WithContext(ctx).Preload("Cursor").Where("project_id = ?", projectID)
	if includeProject {
		tx = tx.Preload("Project.BuildTargets", func(db *gorm.DB) *gorm.DB {
			return db.Order("build_targets.created_at")
		})
	}
	if state != nil {
		tx = tx.Where("state = ?", string(*state))
	}

	var rows []Job
	if err := tx.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]types.JobContext, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, rows[i].toDomain())
	}
	return jobs, nil
}

func (r *repository) UpdateJob(ctx context.Context, id uuid.UUID, update types.JobUpdate) error {
	cols := jobColumns(update, r.now())
	if len(cols) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("failed to update job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
