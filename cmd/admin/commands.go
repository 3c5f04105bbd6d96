package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/elskow/corona-deployments/internal/auth"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type command func(ctx context.Context, d *deps, args []string, out io.Writer) error

var commands = map[string]command{
	"create-user":    createUser,
	"login":          login,
	"create-project": createProject,
	"add-target":     addTarget,
	"commits":        listCommits,
	"create-cursor":  createCursor,
	"enqueue":        enqueue,
	"jobs":           listJobs,
	"job":            showJob,
}

var errCommitNotFound = errors.New("commit not found among recent commits")

// commitSource is the cached commit listing of a project.
type commitSource interface {
	Recent(ctx context.Context, project *types.Project, count int) ([]types.Commit, error)
	Invalidate(ctx context.Context, project *types.Project) error
}

func tokenFlag(fs *flag.FlagSet) *string {
	return fs.String("token", os.Getenv("CORONA_TOKEN"), "session token (defaults to $CORONA_TOKEN)")
}

func authenticate(d *deps, token string) (*auth.User, error) {
	if token == "" {
		return nil, errors.New("a session token is required, run login first")
	}
	return d.Auth.Authenticate(token)
}

func createUser(_ context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	username := fs.String("username", "", "login name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, password, err := d.Auth.CreateUser(*name, *username)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "user:     %s (%s)\npassword: %s\n", user.Username, user.ID, password)
	return nil
}

func login(_ context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "login name")
	password := fs.String("password", os.Getenv("CORONA_PASSWORD"), "password (defaults to $CORONA_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := d.Auth.Login(*username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func createProject(ctx context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-project", flag.ContinueOnError)
	token := tokenFlag(fs)
	name := fs.String("name", "", "project name")
	url := fs.String("url", "", "repository url")
	branch := fs.String("branch", "main", "branch to build (git only)")
	kind := fs.String("kind", string(types.RepositoryGit), "repository kind (git, svn)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := authenticate(d, *token)
	if err != nil {
		return err
	}

	p, err := d.Projects.CreateProject(ctx, types.Project{
		Name:           *name,
		RepositoryURL:  *url,
		Branch:         *branch,
		RepositoryKind: types.RepositoryKind(*kind),
		CreatedBy:      user.ID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "project %s created (%s)\n", p.Name, p.ID)
	return nil
}

func addTarget(ctx context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-target", flag.ContinueOnError)
	token := tokenFlag(fs)
	projectName := fs.String("project", "", "project name")
	name := fs.String("name", "", "target name")
	path := fs.String("path", ".", "source path relative to the checkout")
	buildKind := fs.String("build", string(types.BuildDotNetCore), "build kind (dotnet-core, docker)")
	deployKind := fs.String("deploy", string(types.DeployIIS), "deploy kind (iis, kubernetes, static)")
	site := fs.String("site", "", "site name (iis, static)")
	port := fs.Int("port", 80, "port (iis, kubernetes)")
	namespace := fs.String("namespace", "default", "namespace (kubernetes)")
	image := fs.String("image", "", "serving image (kubernetes)")
	replicas := fs.Int("replicas", 1, "replicas (kubernetes)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := authenticate(d, *token)
	if err != nil {
		return err
	}
	p, err := d.Projects.GetProjectByName(ctx, *projectName)
	if err != nil {
		return fmt.Errorf("project %q: %w", *projectName, err)
	}

	var cfg types.DeployConfig
	switch types.DeployKind(*deployKind) {
	case types.DeployIIS:
		cfg.IIS = &types.IISConfig{SiteName: *site, Port: *port}
	case types.DeployKubernetes:
		cfg.Kubernetes = &types.KubernetesConfig{Namespace: *namespace, Name: *name, Image: *image, Port: *port, Replicas: int32(*replicas)}
	case types.DeployStatic:
		cfg.Static = &types.StaticConfig{SiteName: *site}
	}

	target, err := d.Projects.CreateBuildTarget(ctx, types.BuildTarget{
		ProjectID:    p.ID,
		Name:         *name,
		RelativePath: *path,
		BuildKind:    types.BuildKind(*buildKind),
		DeployKind:   types.DeployKind(*deployKind),
		Deploy:       cfg,
		CreatedBy:    user.ID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "target %s added to %s (%s)\n", target.Name, p.Name, target.ID)
	return nil
}

func listCommits(ctx context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("commits", flag.ContinueOnError)
	projectName := fs.String("project", "", "project name")
	count := fs.Int("count", 10, "number of commits")
	refresh := fs.Bool("refresh", false, "drop the cached listing and read the repository again")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := d.Projects.GetProjectByName(ctx, *projectName)
	if err != nil {
		return fmt.Errorf("project %q: %w", *projectName, err)
	}
	commits, err := recentCommits(ctx, d.Commits, &p, *count, *refresh)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAUTHOR\tMESSAGE")
	for _, c := range commits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Timestamp.Format(time.RFC3339), c.Author, firstLine(c.Message))
	}
	return w.Flush()
}

func createCursor(ctx context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-cursor", flag.ContinueOnError)
	token := tokenFlag(fs)
	projectName := fs.String("project", "", "project name")
	commitID := fs.String("commit", "", "commit id (or prefix) from the commits listing")
	name := fs.String("name", "", "cursor name")
	search := fs.Int("search", 50, "number of recent commits to search")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := authenticate(d, *token)
	if err != nil {
		return err
	}
	p, err := d.Projects.GetProjectByName(ctx, *projectName)
	if err != nil {
		return fmt.Errorf("project %q: %w", *projectName, err)
	}
	commit, err := resolveCommit(ctx, d.Commits, &p, *search, *commitID)
	if err != nil {
		return err
	}

	cursorName := *name
	if cursorName == "" {
		cursorName = commit.ID
	}
	cursor, err := d.Projects.CreateCursor(ctx, types.Cursor{
		ProjectID: p.ID,
		Name:      cursorName,
		Commit:    commit,
		CreatedBy: user.ID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "cursor %s pins %s (%s)\n", cursor.Name, commit.ID, cursor.ID)
	return nil
}

func enqueue(ctx context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	token := tokenFlag(fs)
	projectName := fs.String("project", "", "project name")
	cursorRef := fs.String("cursor", "", "cursor id or name (defaults to the newest cursor)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := authenticate(d, *token)
	if err != nil {
		return err
	}
	p, err := d.Projects.GetProjectByName(ctx, *projectName)
	if err != nil {
		return fmt.Errorf("project %q: %w", *projectName, err)
	}
	cursor, err := findCursor(p.Cursors, *cursorRef)
	if err != nil {
		return err
	}

	job, err := d.Projects.CreateJob(ctx, p.ID, cursor.ID, user.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "job %s queued for %s at %s\n", job.ID, p.Name, cursor.Commit.ID)
	return nil
}

func listJobs(ctx context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	projectName := fs.String("project", "", "project name")
	pending := fs.Bool("pending", false, "only jobs that have not been processed yet")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := d.Projects.GetProjectByName(ctx, *projectName)
	if err != nil {
		return fmt.Errorf("project %q: %w", *projectName, err)
	}
	var state *types.JobState
	if *pending {
		created := types.JobStateCreated
		state = &created
	}
	jobs, err := d.Projects.ListJobs(ctx, p.ID, state, false)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tCREATED\tCOMMIT")
	for _, jc := range jobs {
		commit := ""
		if jc.Cursor != nil {
			commit = jc.Cursor.Commit.ID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", jc.Job.ID, jc.Job.State, jc.Job.CreatedAt.Format(time.RFC3339), commit)
	}
	return w.Flush()
}

func showJob(ctx context.Context, d *deps, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("job", flag.ContinueOnError)
	id := fs.String("id", "", "job id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	jobID, err := uuid.Parse(*id)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}
	jc, err := d.Projects.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "job:       %s\nstate:     %s\ncreated:   %s\n", jc.Job.ID, jc.Job.State, jc.Job.CreatedAt.Format(time.RFC3339))
	if jc.Job.StartedAt != nil {
		fmt.Fprintf(out, "started:   %s\n", jc.Job.StartedAt.Format(time.RFC3339))
	}
	if jc.Job.CompletedAt != nil {
		fmt.Fprintf(out, "completed: %s\n", jc.Job.CompletedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "\n%s", jc.Job.Log)
	return nil
}

func recentCommits(ctx context.Context, src commitSource, p *types.Project, count int, refresh bool) ([]types.Commit, error) {
	if refresh {
		if err := src.Invalidate(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to refresh commit cache: %w", err)
		}
	}
	return src.Recent(ctx, p, count)
}

// resolveCommit looks ref up in the cached listing and, when it is missing,
// once more after dropping the cache so freshly pushed commits can be pinned.
func resolveCommit(ctx context.Context, src commitSource, p *types.Project, search int, ref string) (types.Commit, error) {
	commits, err := recentCommits(ctx, src, p, search, false)
	if err != nil {
		return types.Commit{}, err
	}
	commit, err := findCommit(commits, ref)
	if !errors.Is(err, errCommitNotFound) {
		return commit, err
	}

	commits, err = recentCommits(ctx, src, p, search, true)
	if err != nil {
		return types.Commit{}, err
	}
	return findCommit(commits, ref)
}

func findCommit(commits []types.Commit, ref string) (types.Commit, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if len(commits) == 0 {
			return types.Commit{}, errors.New("repository has no commits")
		}
		return commits[0], nil
	}

	var match []types.Commit
	for _, c := range commits {
		if c.ID == ref {
			return c, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			match = append(match, c)
		}
	}
	switch len(match) {
	case 0:
		return types.Commit{}, fmt.Errorf("%w: %q", errCommitNotFound, ref)
	case 1:
		return match[0], nil
	default:
		return types.Commit{}, fmt.Errorf("commit prefix %q is ambiguous", ref)
	}
}

// findCursor resolves ref by id, then by name. Cursors are newest first.
func findCursor(cursors []types.Cursor, ref string) (types.Cursor, error) {
	if len(cursors) == 0 {
		return types.Cursor{}, errors.New("project has no cursors, run create-cursor first")
	}
	if ref == "" {
		return cursors[0], nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		for _, c := range cursors {
			if c.ID == id {
				return c, nil
			}
		}
	}
	for _, c := range cursors {
		if c.Name == ref {
			return c, nil
		}
	}
	return types.Cursor{}, fmt.Errorf("cursor %q not found", ref)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
