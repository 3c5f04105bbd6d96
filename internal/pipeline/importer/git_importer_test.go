package importer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type fixtureCommit struct {
	content string
	message string
	when    time.Time
}

// newFixtureRepo creates a repository on branch master with one commit per
// entry and returns its path with the commit hashes in creation order.
func newFixtureRepo(t *testing.T, commits ...fixtureCommit) (string, []plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	hashes := make([]plumbing.Hash, 0, len(commits))
	for _, c := range commits {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(c.content), 0o644))
		_, err := wt.Add("index.html")
		require.NoError(t, err)

		sig := &object.Signature{Name: "Jane Doe", Email: "jane@example.com", When: c.when}
		h, err := wt.Commit(c.message, &git.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
		hashes = append(hashes, h)
	}
	return dir, hashes
}

func setupGitImporter(t *testing.T) (*GitImporter, *Workspace) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available for local transport")
	}
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	return NewGitImporter(ws, zap.NewNop()), ws
}

func TestGitImporter_Import(t *testing.T) {
	importer, ws := setupGitImporter(t)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	origin, hashes := newFixtureRepo(t,
		fixtureCommit{content: "v1", message: "first", when: base},
		fixtureCommit{content: "v2", message: "second", when: base.Add(time.Hour)},
	)
	project := &types.Project{Name: "site", RepositoryURL: origin, Branch: "master", RepositoryKind: types.RepositoryGit}

	t.Run("head of branch", func(t *testing.T) {
		log := runlog.New(zap.NewNop())
		dir, err := importer.Import(context.Background(), project, nil, "", log)
		require.NoError(t, err)
		assert.DirExists(t, dir)
		assert.Equal(t, ws.Root(), filepath.Dir(dir))

		content, err := os.ReadFile(filepath.Join(dir, "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "v2", string(content))
		assert.Contains(t, log.Snapshot(), "Check out complete.")
	})

	t.Run("pinned commit", func(t *testing.T) {
		log := runlog.New(zap.NewNop())
		dir, err := importer.Import(context.Background(), project, nil, hashes[0].String(), log)
		require.NoError(t, err)

		content, err := os.ReadFile(filepath.Join(dir, "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "v1", string(content))
		assert.Contains(t, log.Snapshot(), "Checking out commit "+hashes[0].String())
	})

	t.Run("unknown commit leaves no directory behind", func(t *testing.T) {
		before, err := os.ReadDir(ws.Root())
		require.NoError(t, err)

		_, err = importer.Import(context.Background(), project, nil, "0123456789012345678901234567890123456789", runlog.New(zap.NewNop()))
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrExternalTool)

		after, err := os.ReadDir(ws.Root())
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("missing branch", func(t *testing.T) {
		missing := *project
		missing.Branch = "release"
		_, err := importer.Import(context.Background(), &missing, nil, "", runlog.New(zap.NewNop()))
		assert.ErrorIs(t, err, types.ErrExternalTool)
	})
}

func TestGitImporter_ListCommits(t *testing.T) {
	importer, ws := setupGitImporter(t)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))
	origin, hashes := newFixtureRepo(t,
		fixtureCommit{content: "a", message: "one\n", when: base},
		fixtureCommit{content: "b", message: "two\n", when: base.Add(time.Minute)},
		fixtureCommit{content: "c", message: "three\n", when: base.Add(2 * time.Minute)},
	)
	project := &types.Project{Name: "site", RepositoryURL: origin, Branch: "master", RepositoryKind: types.RepositoryGit}

	commits, err := importer.ListCommits(context.Background(), project, nil, 2, runlog.New(zap.NewNop()))
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, hashes[2].String(), commits[0].ID)
	assert.Equal(t, "three", commits[0].Message)
	assert.Equal(t, "Jane Doe - jane@example.com", commits[0].Author)
	assert.Equal(t, base.Add(2*time.Minute).UTC(), commits[0].Timestamp)
	assert.Equal(t, time.UTC, commits[0].Timestamp.Location())
	assert.Equal(t, hashes[1].String(), commits[1].ID)

	entries, err := os.ReadDir(ws.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "enumeration checkout should be removed")

	none, err := importer.ListCommits(context.Background(), project, nil, 0, runlog.New(zap.NewNop()))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
