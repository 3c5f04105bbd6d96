package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/shell"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

const defaultSvnBinary = "svn"

type SvnImporter struct {
	binary    string
	workspace *Workspace
	runner    shell.Runner
	logger    *zap.Logger
}

func NewSvnImporter(cfg *config.SvnConfig, workspace *Workspace, runner shell.Runner, logger *zap.Logger) *SvnImporter {
	binary := cfg.Binary
	if binary == "" {
		binary = defaultSvnBinary
	}
	return &SvnImporter{
		binary:    binary,
		workspace: workspace,
		runner:    runner,
		logger:    logger,
	}
}

func (s *SvnImporter) Kind() types.RepositoryKind {
	return types.RepositorySvn
}

func (s *SvnImporter) Import(ctx context.Context, project *types.Project, auth *types.AuthInfo, commitID string, log *runlog.Log) (string, error) {
	if commitID != "" {
		if _, err := strconv.ParseUint(commitID, 10, 64); err != nil {
			return "", fmt.Errorf("%w: subversion revision must be numeric, got %q", types.ErrValidation, commitID)
		}
	}

	dir, err := s.workspace.Prepare(project.Name)
	if err != nil {
		return "", err
	}

	args := []string{"checkout", "--non-interactive"}
	args = append(args, authArgs(auth)...)
	if commitID != "" {
		args = append(args, "-r", commitID)
	}
	args = append(args, project.RepositoryURL, dir)

	if commitID == "" {
		log.Infof("Checking out %s into %s...", project.RepositoryURL, dir)
	} else {
		log.Infof("Checking out %s at revision %s into %s...", project.RepositoryURL, commitID, dir)
	}

	out, err := s.runner.Run(ctx, "", s.binary, args...)
	if trimmed := strings.TrimSpace(out); trimmed != "" {
		s.logger.Debug("svn checkout output", zap.String("project", project.Name), zap.String("output", trimmed))
	}
	if err != nil {
		if trimmed := strings.TrimSpace(out); trimmed != "" {
			log.Error(trimmed)
		}
		discard(s.workspace, dir, log)
		return "", fmt.Errorf("%w: svn checkout: %v", types.ErrExternalTool, err)
	}

	log.Info("Check out complete.")
	return dir, nil
}

func (s *SvnImporter) ListCommits(ctx context.Context, project *types.Project, auth *types.AuthInfo, count int, log *runlog.Log) ([]types.Commit, error) {
	dir, err := s.Import(ctx, project, auth, "", log)
	if err != nil {
		return nil, err
	}
	defer discard(s.workspace, dir, log)

	if count <= 0 {
		return []types.Commit{}, nil
	}

	args := []string{"log", "--xml", "--non-interactive", "-l", strconv.Itoa(count)}
	args = append(args, authArgs(auth)...)

	out, err := s.runner.Run(ctx, dir, s.binary, args...)
	if err != nil {
		if trimmed := strings.TrimSpace(out); trimmed != "" {
			log.Error(trimmed)
		}
		return nil, fmt.Errorf("%w: svn log: %v", types.ErrExternalTool, err)
	}

	return parseSvnLog([]byte(out))
}

func authArgs(auth *types.AuthInfo) []string {
	if auth == nil {
		return nil
	}
	return []string{"--username", auth.Username, "--password", auth.Password, "--no-auth-cache"}
}

type svnLog struct {
	Entries []svnLogEntry `xml:"logentry"`
}

type svnLogEntry struct {
	Revision string `xml:"revision,attr"`
	Author   string `xml:"author"`
	Date     string `xml:"date"`
	Message  string `xml:"msg"`
}

func parseSvnLog(data []byte) ([]types.Commit, error) {
	var parsed svnLog
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse svn log: %v", types.ErrExternalTool, err)
	}

	commits := make([]types.Commit, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		var ts time.Time
		if e.Date != "" {
			t, err := time.Parse(time.RFC3339Nano, e.Date)
			if err != nil {
				return nil, fmt.Errorf("%w: revision %s has invalid date %q", types.ErrExternalTool, e.Revision, e.Date)
			}
			ts = t.UTC()
		}
		commits = append(commits, types.Commit{
			ID:        e.Revision,
			Message:   strings.TrimSpace(e.Message),
			Timestamp: ts,
			Author:    e.Author,
		})
	}
	return commits, nil
}
