package importer

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type runCall struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls   []runCall
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, runCall{dir: dir, name: name, args: args})
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	return f.outputs[sub], f.errs[sub]
}

const svnLogXML = `<?xml version="1.0" encoding="UTF-8"?>
<log>
<logentry revision="12">
<author>alice</author>
<date>2026-03-04T05:06:07.123456Z</date>
<msg>Fix header
</msg>
</logentry>
<logentry revision="11">
<author>bob</author>
<date>2026-03-03T00:00:00.000000Z</date>
<msg>Initial import</msg>
</logentry>
</log>`

func setupSvnImporter(t *testing.T, runner *fakeRunner) (*SvnImporter, *Workspace) {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	return NewSvnImporter(&config.SvnConfig{}, ws, runner, zap.NewNop()), ws
}

func TestSvnImporter_Import(t *testing.T) {
	project := &types.Project{Name: "legacy", RepositoryURL: "https://svn.example.com/legacy/trunk", RepositoryKind: types.RepositorySvn}

	t.Run("with auth and revision", func(t *testing.T) {
		runner := &fakeRunner{}
		importer, _ := setupSvnImporter(t, runner)

		dir, err := importer.Import(context.Background(), project, &types.AuthInfo{Username: "ci", Password: "secret"}, "42", runlog.New(zap.NewNop()))
		require.NoError(t, err)
		assert.DirExists(t, dir)

		require.Len(t, runner.calls, 1)
		call := runner.calls[0]
		assert.Equal(t, "svn", call.name)
		assert.Equal(t, []string{
			"checkout", "--non-interactive",
			"--username", "ci", "--password", "secret", "--no-auth-cache",
			"-r", "42",
			project.RepositoryURL, dir,
		}, call.args)
	})

	t.Run("non numeric revision", func(t *testing.T) {
		runner := &fakeRunner{}
		importer, _ := setupSvnImporter(t, runner)

		_, err := importer.Import(context.Background(), project, nil, "abc123", runlog.New(zap.NewNop()))
		assert.ErrorIs(t, err, types.ErrValidation)
		assert.Empty(t, runner.calls)
	})

	t.Run("tool failure removes checkout", func(t *testing.T) {
		runner := &fakeRunner{
			outputs: map[string]string{"checkout": "svn: E170013: Unable to connect"},
			errs:    map[string]error{"checkout": errors.New("svn exited with code 1")},
		}
		importer, ws := setupSvnImporter(t, runner)
		log := runlog.New(zap.NewNop())

		_, err := importer.Import(context.Background(), project, nil, "", log)
		assert.ErrorIs(t, err, types.ErrExternalTool)
		assert.Contains(t, log.Snapshot(), "E170013")

		entries, err := os.ReadDir(ws.Root())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestSvnImporter_ListCommits(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"log": svnLogXML}}
	importer, ws := setupSvnImporter(t, runner)
	project := &types.Project{Name: "legacy", RepositoryURL: "https://svn.example.com/legacy/trunk", RepositoryKind: types.RepositorySvn}

	commits, err := importer.ListCommits(context.Background(), project, nil, 5, runlog.New(zap.NewNop()))
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, types.Commit{
		ID:        "12",
		Message:   "Fix header",
		Timestamp: time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC),
		Author:    "alice",
	}, commits[0])
	assert.Equal(t, "11", commits[1].ID)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{"log", "--xml", "--non-interactive", "-l", "5"}, runner.calls[1].args)
	assert.NotEmpty(t, runner.calls[1].dir)

	entries, err := os.ReadDir(ws.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseSvnLog_Invalid(t *testing.T) {
	_, err := parseSvnLog([]byte("<log><logentry revision=\"1\"><date>yesterday</date></logentry></log>"))
	assert.ErrorIs(t, err, types.ErrExternalTool)

	_, err = parseSvnLog([]byte("not xml"))
	assert.Error(t, err)
}
