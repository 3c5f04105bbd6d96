package builder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

const defaultArtifactPath = "/app/publish"

var invalidTagChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// DockerBuilder builds a target's Dockerfile and extracts the artifact
// directory from the resulting image into the output path.
type DockerBuilder struct {
	artifactPath string
	api          DockerAPI
	logger       *zap.Logger
}

func NewDockerBuilder(cfg *config.DockerConfig, api DockerAPI, logger *zap.Logger) *DockerBuilder {
	artifactPath := cfg.ArtifactPath
	if artifactPath == "" {
		artifactPath = defaultArtifactPath
	}
	return &DockerBuilder{
		artifactPath: artifactPath,
		api:          api,
		logger:       logger,
	}
}

func (b *DockerBuilder) Kind() types.BuildKind {
	return types.BuildDocker
}

func (b *DockerBuilder) Build(ctx context.Context, target types.BuildTarget, sourcePath, outPath string, log *runlog.Log) (types.StrategyResult, error) {
	if _, err := os.Stat(filepath.Join(sourcePath, "Dockerfile")); err != nil {
		log.Errorf("No Dockerfile found in %s", sourcePath)
		return types.StrategyResult{IsError: true}, nil
	}

	tag := ImageTag(target.Name)
	log.Infof("docker build -t %s %s", tag, sourcePath)
	b.logger.Info("starting docker build",
		zap.String("target", target.Name),
		zap.String("tag", tag))

	stream, err := b.api.BuildImage(ctx, sourcePath, tag)
	if err != nil {
		return types.StrategyResult{IsError: true}, err
	}
	defer stream.Close()

	var output bytes.Buffer
	if err := jsonmessage.DisplayJSONMessagesStream(stream, &output, 0, false, nil); err != nil {
		log.Errorf("docker build failed: %v", err)
		return types.StrategyResult{Output: output.String(), IsError: true}, nil
	}

	log.Infof("Extracting %s from %s to %s", b.artifactPath, tag, outPath)
	err = b.api.CopyFromImage(ctx, tag, b.artifactPath, func(tarStream io.Reader) error {
		return extract(tarStream, path.Base(b.artifactPath), outPath)
	})
	if err != nil {
		log.Errorf("artifact extraction failed: %v", err)
		return types.StrategyResult{Output: output.String(), IsError: true}, nil
	}

	return types.StrategyResult{Output: output.String(), IsError: false}, nil
}

// extract unpacks a container copy archive, whose entries are rooted at
// base, so that base's contents end up at outPath.
func extract(tarStream io.Reader, base, outPath string) error {
	staging, err := os.MkdirTemp(filepath.Dir(outPath), ".extract-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := archive.Untar(tarStream, staging, &archive.TarOptions{NoLchown: true}); err != nil {
		return fmt.Errorf("failed to unpack artifact: %w", err)
	}

	if err := os.RemoveAll(outPath); err != nil {
		return fmt.Errorf("failed to clear output path: %w", err)
	}
	return os.Rename(filepath.Join(staging, base), outPath)
}

// ImageTag derives a valid image reference from a build target name.
func ImageTag(targetName string) string {
	name := invalidTagChars.ReplaceAllString(strings.ToLower(targetName), "-")
	name = strings.Trim(name, "-._")
	if name == "" {
		name = "target"
	}
	return "corona/" + name + ":latest"
}
