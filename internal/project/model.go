package project

import (
	"time"

	"github.com/google/uuid"

	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type Project struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Name           string        `gorm:"uniqueIndex;not null"`
	RepositoryURL  string        `gorm:"not null"`
	Branch         string        `gorm:"not null;default:main"`
	RepositoryKind string        `gorm:"not null"`
	BuildTargets   []BuildTarget `gorm:"foreignKey:ProjectID"`
	Cursors        []Cursor      `gorm:"foreignKey:ProjectID"`
	CreatedAt      time.Time
	CreatedBy      uuid.UUID `gorm:"type:uuid"`
}

func (Project) TableName() string {
	return "projects"
}

type BuildTarget struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey"`
	ProjectID    uuid.UUID          `gorm:"type:uuid;index;not null"`
	Name         string             `gorm:"not null"`
	RelativePath string             `gorm:"not null"`
	BuildKind    string             `gorm:"not null"`
	DeployKind   string             `gorm:"not null"`
	Deploy       types.DeployConfig `gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time
	CreatedBy    uuid.UUID `gorm:"type:uuid"`
}

func (BuildTarget) TableName() string {
	return "build_targets"
}

type Cursor struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectID       uuid.UUID `gorm:"type:uuid;index;not null"`
	Name            string    `gorm:"not null"`
	CommitID        string    `gorm:"not null"`
	CommitMessage   string
	CommitTimestamp time.Time
	CommitAuthor    string
	CreatedAt       time.Time
	CreatedBy       uuid.UUID `gorm:"type:uuid"`
}

func (Cursor) TableName() string {
	return "repository_cursors"
}

type Job struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectID   uuid.UUID `gorm:"type:uuid;index;not null"`
	CursorID    uuid.UUID `gorm:"type:uuid;not null"`
	State       string    `gorm:"index;not null"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	Log         string
	CreatedAt   time.Time
	CreatedBy   uuid.UUID `gorm:"type:uuid"`

	Project *Project `gorm:"foreignKey:ProjectID"`
	Cursor  *Cursor  `gorm:"foreignKey:CursorID"`
}

func (Job) TableName() string {
	return "jobs"
}

func (p *Project) toDomain() types.Project {
	out := types.Project{
		ID:             p.ID,
		Name:           p.Name,
		RepositoryURL:  p.RepositoryURL,
		Branch:         p.Branch,
		RepositoryKind: types.RepositoryKind(p.RepositoryKind),
		CreatedAt:      p.CreatedAt,
		CreatedBy:      p.CreatedBy,
		BuildTargets:   make([]types.BuildTarget, 0, len(p.BuildTargets)),
		Cursors:        make([]types.Cursor, 0, len(p.Cursors)),
	}
	for i := range p.BuildTargets {
		out.BuildTargets = append(out.BuildTargets, p.BuildTargets[i].toDomain())
	}
	for i := range p.Cursors {
		out.Cursors = append(out.Cursors, p.Cursors[i].toDomain())
	}
	return out
}

func (t *BuildTarget) toDomain() types.BuildTarget {
	return types.BuildTarget{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		Name:         t.Name,
		RelativePath: t.RelativePath,
		BuildKind:    types.BuildKind(t.BuildKind),
		DeployKind:   types.DeployKind(t.DeployKind),
		Deploy:       t.Deploy,
		CreatedAt:    t.CreatedAt,
		CreatedBy:    t.CreatedBy,
	}
}

func (c *Cursor) toDomain() types.Cursor {
	return types.Cursor{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Name:      c.Name,
		Commit: types.Commit{
			ID:        c.CommitID,
			Message:   c.CommitMessage,
			Timestamp: c.CommitTimestamp,
			Author:    c.CommitAuthor,
		},
		CreatedAt: c.CreatedAt,
		CreatedBy: c.CreatedBy,
	}
}

func (j *Job) toDomain() types.JobContext {
	jc := types.JobContext{
		Job: types.Job{
			ID:          j.ID,
			ProjectID:   j.ProjectID,
			CursorID:    j.CursorID,
			CreatedAt:   j.CreatedAt,
			CreatedBy:   j.CreatedBy,
			State:       types.JobState(j.State),
			StartedAt:   j.StartedAt,
			CompletedAt: j.CompletedAt,
			Log:         j.Log,
		},
	}
	if j.Project != nil {
		p := j.Project.toDomain()
		jc.Project = &p
	}
	if j.Cursor != nil {
		c := j.Cursor.toDomain()
		jc.Cursor = &c
	}
	return jc
}

func projectFromDomain(p types.Project) Project {
	return Project{
		ID:             p.ID,
		Name:           p.Name,
		RepositoryURL:  p.RepositoryURL,
		Branch:         p.Branch,
		RepositoryKind: string(p.RepositoryKind),
		CreatedAt:      p.CreatedAt,
		CreatedBy:      p.CreatedBy,
	}
}

func buildTargetFromDomain(t types.BuildTarget) BuildTarget {
	return BuildTarget{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		Name:         t.Name,
		RelativePath: t.RelativePath,
		BuildKind:    string(t.BuildKind),
		DeployKind:   string(t.DeployKind),
		Deploy:       t.Deploy,
		CreatedAt:    t.CreatedAt,
		CreatedBy:    t.CreatedBy,
	}
}

func cursorFromDomain(c types.Cursor) Cursor {
	return Cursor{
		ID:              c.ID,
		ProjectID:       c.ProjectID,
		Name:            c.Name,
		CommitID:        c.Commit.ID,
		CommitMessage:   c.Commit.Message,
		CommitTimestamp: c.Commit.Timestamp,
		CommitAuthor:    c.Commit.Author,
		CreatedAt:       c.CreatedAt,
		CreatedBy:       c.CreatedBy,
	}
}

// jobColumns maps a JobUpdate to the columns it touches. An empty log is
// never written so a late poll cannot blank a persisted log.
func jobColumns(update types.JobUpdate, now time.Time) map[string]any {
	cols := map[string]any{}
	if update.Log != nil && *update.Log != "" {
		cols["log"] = *update.Log
	}
	if update.StartedAt != nil {
		cols["started_at"] = update.StartedAt.UTC()
	}
	if update.State != nil {
		cols["state"] = string(*update.State)
		if *update.State == types.JobStateCompleted {
			cols["completed_at"] = now.UTC()
		}
	}
	return cols
}
