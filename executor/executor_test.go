package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecute_CapturesOutput(t *testing.T) {
	requireShell(t)

	ex := New(hclog.NewNullLogger())
	res, err := ex.Execute(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecute_StdoutWriterAndStdin(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer

	ex := New(hclog.NewNullLogger())
	res, err := ex.Execute(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "cat"},
		Stdin:  strings.NewReader("piped"),
		Stdout: &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "piped", out.String())
	assert.Empty(t, res.Stdout)
}

func TestExecute_NonZeroExit(t *testing.T) {
	requireShell(t)

	ex := New(hclog.NewNullLogger())
	res, err := ex.Execute(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, err.Error(), "boom")
}

func TestExecute_Env(t *testing.T) {
	requireShell(t)

	ex := New(hclog.NewNullLogger())
	res, err := ex.Execute(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$CPAAS_TEST\""},
		Env:  map[string]string{"CPAAS_TEST": "value"},
	})
	require.NoError(t, err)
	assert.Equal(t, "value", res.Stdout)
}

func TestExecute_MissingBinary(t *testing.T) {
	ex := New(hclog.NewNullLogger())
	_, err := ex.Execute(context.Background(), Command{Name: "cpaasctl-does-not-exist"})
	require.Error(t, err)

	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}
