package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

const (
	modulePath       = "github.com/elskow/corona-deployments"
	migrationsDirEnv = "CORONA_MIGRATIONS_DIR"
)

var errModuleNotFound = errors.New("module root not found")

// migrationsDir resolves CORONA_MIGRATIONS_DIR, falling back to the
// migrations directory of the enclosing source checkout.
func migrationsDir() (string, error) {
	if dir := os.Getenv(migrationsDirEnv); dir != "" {
		return filepath.Abs(dir)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := moduleRoot(wd)
	if err != nil {
		return "", fmt.Errorf("set %s or run from the source tree: %w", migrationsDirEnv, err)
	}
	return filepath.Join(root, "migrations"), nil
}

// moduleRoot walks up from start until it meets a go.mod declaring modulePath.
func moduleRoot(start string) (string, error) {
	for dir := start; ; dir = filepath.Dir(dir) {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		switch {
		case err == nil:
			if modfile.ModulePath(data) == modulePath {
				return dir, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", err
		}

		if filepath.Dir(dir) == dir {
			return "", errModuleNotFound
		}
	}
}
