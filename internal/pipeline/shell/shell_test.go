package shell

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Run(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := NewExecRunner()

	out, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExecRunner_ExitError(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := NewExecRunner()

	out, err := r.Run(context.Background(), "", "sh", "-c", "echo broken; exit 3")
	require.Error(t, err)
	assert.True(t, IsExitError(err))
	assert.Contains(t, err.Error(), "code 3")
	assert.Equal(t, "broken\n", out)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner()

	_, err := r.Run(context.Background(), "", "corona-no-such-binary")
	require.Error(t, err)
	assert.False(t, IsExitError(err))
}
