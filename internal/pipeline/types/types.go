package types

import (
	"time"

	"github.com/google/uuid"
)

type RepositoryKind string

const (
	RepositoryGit RepositoryKind = "git"
	RepositorySvn RepositoryKind = "svn"
)

type BuildKind string

const (
	BuildDotNetCore BuildKind = "dotnet-core"
	BuildDocker     BuildKind = "docker"
)

type DeployKind string

const (
	DeployIIS        DeployKind = "iis"
	DeployKubernetes DeployKind = "kubernetes"
	DeployStatic     DeployKind = "static"
)

type JobState string

const (
	JobStateCreated   JobState = "created"
	JobStateCompleted JobState = "completed"
)

type Project struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	RepositoryURL  string         `json:"repository_url"`
	Branch         string         `json:"branch"`
	RepositoryKind RepositoryKind `json:"repository_kind"`
	BuildTargets   []BuildTarget  `json:"build_targets"`
	Cursors        []Cursor       `json:"cursors"`
	CreatedAt      time.Time      `json:"created_at"`
	CreatedBy      uuid.UUID      `json:"created_by"`
}

type BuildTarget struct {
	ID           uuid.UUID    `json:"id"`
	ProjectID    uuid.UUID    `json:"project_id"`
	Name         string       `json:"name"`
	RelativePath string       `json:"relative_path"`
	BuildKind    BuildKind    `json:"build_kind"`
	DeployKind   DeployKind   `json:"deploy_kind"`
	Deploy       DeployConfig `json:"deploy"`
	CreatedAt    time.Time    `json:"created_at"`
	CreatedBy    uuid.UUID    `json:"created_by"`
}

// Commit is a snapshot of one revision's metadata. For Subversion the ID is
// the revision number.
type Commit struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
}

type Cursor struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Commit    Commit    `json:"commit"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy uuid.UUID `json:"created_by"`
}

// Job is a build-and-deploy request. Completed means processed, not
// succeeded; the log is the only record of the outcome.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	CursorID    uuid.UUID  `json:"cursor_id"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	State       JobState   `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Log         string     `json:"log"`
}

// JobContext is a job with its project and cursor attached. Project is nil
// unless it was requested.
type JobContext struct {
	Job     Job
	Project *Project
	Cursor  *Cursor
}

// JobUpdate carries the optional fields of a job write. Nil fields are left
// untouched.
type JobUpdate struct {
	Log       *string
	State     *JobState
	StartedAt *time.Time
}

type AuthInfo struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ImportResult struct {
	CheckoutPath string
	HasErrors    bool
}

// StrategyResult is what a build or deploy strategy reports. IsError is the
// strategy's own judgement of the tool output.
type StrategyResult struct {
	Output  string
	IsError bool
}

type BuildResult struct {
	Target     BuildTarget
	OutputPath string
	HasErrors  bool
}

type DeployResult struct {
	Build     BuildResult
	Output    string
	HasErrors bool
}
