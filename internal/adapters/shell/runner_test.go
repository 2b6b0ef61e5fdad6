package shell_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/adapters/shell"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
}

func TestRunner_Run(t *testing.T) {
	skipOnWindows(t)
	r := shell.NewRunner(nil)

	var out bytes.Buffer
	err := r.Run(context.Background(), "sh", []string{"-c", "echo hello"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.String())
}

func TestRunner_RunExitCode(t *testing.T) {
	skipOnWindows(t)
	r := shell.NewRunner(nil)

	err := r.Run(context.Background(), "sh", []string{"-c", "exit 3"}, io.Discard)
	require.Error(t, err)

	var zerrErr *zerr.Error
	if errors.As(err, &zerrErr) {
		assert.Equal(t, 3, zerrErr.Metadata()["exit_code"])
	}
}

func TestRunner_Start(t *testing.T) {
	skipOnWindows(t)
	r := shell.NewRunner(nil)

	p, err := r.Start(context.Background(), "sh", []string{"-c", "printf 'a\\nb\\n'"})
	require.NoError(t, err)

	data, err := io.ReadAll(p.Out())
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
	require.NoError(t, p.Wait())
}

func TestRunner_StartMissingTool(t *testing.T) {
	r := shell.NewRunner(nil)
	_, err := r.Start(context.Background(), "definitely-not-a-real-tool-xyz", nil)
	require.Error(t, err)
}
