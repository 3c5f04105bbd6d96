package builder

import (
	"context"
	"fmt"
	"io"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
)

// DockerAPI is the slice of the Docker engine the docker build strategy
// drives.
type DockerAPI interface {
	// BuildImage builds contextDir with its Dockerfile and returns the raw
	// JSON message stream of the build.
	BuildImage(ctx context.Context, contextDir, tag string) (io.ReadCloser, error)

	// CopyFromImage streams srcPath out of a throwaway container of image as a
	// tar archive. The container is removed before returning.
	CopyFromImage(ctx context.Context, image, srcPath string, fn func(tarStream io.Reader) error) error
}

type DockerClient struct {
	cli *client.Client
}

func NewDockerClient() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerClient{cli: cli}, nil
}

func (d *DockerClient) BuildImage(ctx context.Context, contextDir, tag string) (io.ReadCloser, error) {
	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{
		ExcludePatterns: []string{".git"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}
	defer buildContext.Close()

	resp, err := d.cli.ImageBuild(ctx, buildContext, dockertypes.ImageBuildOptions{
		Dockerfile:  "Dockerfile",
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return nil, fmt.Errorf("docker build failed: %w", err)
	}
	return resp.Body, nil
}

func (d *DockerClient) CopyFromImage(ctx context.Context, image, srcPath string, fn func(io.Reader) error) error {
	created, err := d.cli.ContainerCreate(ctx, &container.Config{Image: image}, nil, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container from %s: %w", image, err)
	}
	defer d.cli.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})

	reader, _, err := d.cli.CopyFromContainer(ctx, created.ID, srcPath)
	if err != nil {
		return fmt.Errorf("failed to copy %s from container: %w", srcPath, err)
	}
	defer reader.Close()

	return fn(reader)
}
