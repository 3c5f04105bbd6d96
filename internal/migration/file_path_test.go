package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGoMod(t *testing.T, dir, module string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module "+module+"\n"), 0o644))
}

func TestMigrationsDir(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(migrationsDirEnv, dir)

		got, err := migrationsDir()
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("source tree", func(t *testing.T) {
		t.Setenv(migrationsDirEnv, "")

		got, err := migrationsDir()
		require.NoError(t, err)
		assert.Equal(t, "migrations", filepath.Base(got))
		assert.FileExists(t, filepath.Join(filepath.Dir(got), "go.mod"))
	})
}

func TestModuleRoot(t *testing.T) {
	t.Run("nested directory", func(t *testing.T) {
		root := t.TempDir()
		writeGoMod(t, root, modulePath)
		nested := filepath.Join(root, "internal", "migration")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		got, err := moduleRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("skips other modules", func(t *testing.T) {
		root := t.TempDir()
		writeGoMod(t, root, modulePath)
		vendored := filepath.Join(root, "tools")
		require.NoError(t, os.MkdirAll(vendored, 0o755))
		writeGoMod(t, vendored, "example.com/tools")

		got, err := moduleRoot(vendored)
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("not found", func(t *testing.T) {
		dir := t.TempDir()
		writeGoMod(t, dir, "example.com/other")

		_, err := moduleRoot(dir)
		assert.ErrorIs(t, err, errModuleNotFound)
	})
}
