package builder

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/corona-deployments/internal/pipeline/config"
	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type fakeRunner struct {
	output string
	err    error
	name   string
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) (string, error) {
	f.name = name
	f.args = args
	return f.output, f.err
}

func TestDotNetBuilder_Build(t *testing.T) {
	target := types.BuildTarget{Name: "api", BuildKind: types.BuildDotNetCore}

	tests := []struct {
		name        string
		output      string
		runErr      error
		wantIsError bool
		wantErr     bool
	}{
		{name: "success", output: "api -> /out/api.dll", wantIsError: false},
		{name: "empty output", output: "  \n", wantIsError: true},
		{name: "compiler error", output: "Program.cs(3,1): error CS1002: ; expected", wantIsError: true},
		{name: "tool missing", runErr: errors.New("failed to run dotnet"), wantIsError: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{output: tt.output, err: tt.runErr}
			b := NewDotNetBuilder(&config.DotNetConfig{}, runner, zap.NewNop())

			result, err := b.Build(context.Background(), target, "/src/api", "/src/api-out", runlog.New(zap.NewNop()))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantIsError, result.IsError)
			assert.Equal(t, tt.output, result.Output)
		})
	}
}

func TestDotNetBuilder_Arguments(t *testing.T) {
	runner := &fakeRunner{output: "ok"}
	b := NewDotNetBuilder(&config.DotNetConfig{Runtime: "linux-x64"}, runner, zap.NewNop())
	log := runlog.New(zap.NewNop())

	_, err := b.Build(context.Background(), types.BuildTarget{Name: "api"}, "/src/api", "/out/api", log)
	require.NoError(t, err)

	assert.Equal(t, "dotnet", runner.name)
	assert.Equal(t, []string{"publish", "/src/api", "-c", "Release", "--self-contained", "-r", "linux-x64", "-o", "/out/api"}, runner.args)
	assert.Contains(t, log.Snapshot(), "dotnet publish /src/api")
	assert.Equal(t, types.BuildDotNetCore, b.Kind())
}

type fakeDocker struct {
	stream   string
	buildErr error
	files    map[string]string
	copyErr  error

	builtTag  string
	copiedSrc string
}

func (f *fakeDocker) BuildImage(_ context.Context, _ string, tag string) (io.ReadCloser, error) {
	f.builtTag = tag
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return io.NopCloser(bytes.NewBufferString(f.stream)), nil
}

func (f *fakeDocker) CopyFromImage(_ context.Context, _ string, srcPath string, fn func(io.Reader) error) error {
	f.copiedSrc = srcPath
	if f.copyErr != nil {
		return f.copyErr
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	base := filepath.Base(srcPath)
	if err := tw.WriteHeader(&tar.Header{Name: base + "/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		return err
	}
	for name, content := range f.files {
		hdr := &tar.Header{Name: base + "/" + name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return fn(&buf)
}

func dockerSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "web")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	return src
}

func TestDockerBuilder_Build(t *testing.T) {
	t.Run("extracts artifact", func(t *testing.T) {
		api := &fakeDocker{
			stream: `{"stream":"Step 1/1 : FROM scratch\n"}` + "\n" + `{"stream":"Successfully built abc\n"}` + "\n",
			files:  map[string]string{"index.html": "<h1>hi</h1>"},
		}
		b := NewDockerBuilder(&config.DockerConfig{ArtifactPath: "/usr/share/nginx/html"}, api, zap.NewNop())
		src := dockerSource(t)
		out := filepath.Join(filepath.Dir(src), "Web Site")

		result, err := b.Build(context.Background(), types.BuildTarget{Name: "Web Site"}, src, out, runlog.New(zap.NewNop()))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, result.Output, "Successfully built abc")
		assert.Equal(t, "corona/web-site:latest", api.builtTag)
		assert.Equal(t, "/usr/share/nginx/html", api.copiedSrc)

		content, err := os.ReadFile(filepath.Join(out, "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "<h1>hi</h1>", string(content))
	})

	t.Run("build error in stream", func(t *testing.T) {
		api := &fakeDocker{
			stream: `{"errorDetail":{"message":"RUN failed"},"error":"RUN failed"}` + "\n",
		}
		b := NewDockerBuilder(&config.DockerConfig{}, api, zap.NewNop())
		log := runlog.New(zap.NewNop())

		result, err := b.Build(context.Background(), types.BuildTarget{Name: "web"}, dockerSource(t), t.TempDir(), log)
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, log.Snapshot(), "RUN failed")
		assert.Empty(t, api.copiedSrc)
	})

	t.Run("missing dockerfile", func(t *testing.T) {
		api := &fakeDocker{}
		b := NewDockerBuilder(&config.DockerConfig{}, api, zap.NewNop())

		result, err := b.Build(context.Background(), types.BuildTarget{Name: "web"}, t.TempDir(), t.TempDir(), runlog.New(zap.NewNop()))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Empty(t, api.builtTag)
	})

	t.Run("daemon unreachable", func(t *testing.T) {
		api := &fakeDocker{buildErr: errors.New("cannot connect to the Docker daemon")}
		b := NewDockerBuilder(&config.DockerConfig{}, api, zap.NewNop())

		result, err := b.Build(context.Background(), types.BuildTarget{Name: "web"}, dockerSource(t), t.TempDir(), runlog.New(zap.NewNop()))
		assert.Error(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("copy failure", func(t *testing.T) {
		api := &fakeDocker{stream: `{"stream":"ok\n"}`, copyErr: errors.New("no such path")}
		b := NewDockerBuilder(&config.DockerConfig{}, api, zap.NewNop())

		result, err := b.Build(context.Background(), types.BuildTarget{Name: "web"}, dockerSource(t), t.TempDir(), runlog.New(zap.NewNop()))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, defaultArtifactPath, api.copiedSrc)
	})
}

func TestImageTag(t *testing.T) {
	assert.Equal(t, "corona/api:latest", ImageTag("API"))
	assert.Equal(t, "corona/my-app:latest", ImageTag("--My App!"))
	assert.Equal(t, "corona/target:latest", ImageTag("???"))
}
