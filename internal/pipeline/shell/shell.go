package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Runner executes an external tool and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

type ExecRunner struct {
	Env []string
}

func NewExecRunner() *ExecRunner {
	// Tools must never wait on an interactive credential prompt.
	return &ExecRunner{Env: []string{"GIT_TERMINAL_PROMPT=0"}}
}

func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.Env...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(output), fmt.Errorf("%s exited with code %d: %w", name, exitErr.ExitCode(), err)
		}
		return string(output), fmt.Errorf("failed to run %s: %w", name, err)
	}
	return string(output), nil
}

// IsExitError reports whether the tool ran but exited non-zero, as opposed
// to not running at all.
func IsExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
