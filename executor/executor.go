// Package executor runs external programs (docker compose, openssl, certbot, crontab)
// and turns a nonzero exit into a typed error carrying the exit code and stderr.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Command describes a single external program invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string

	// Stdin is optional input passed to the program
	Stdin io.Reader
	// Stdout, if set, receives the program output instead of Result.Stdout
	Stdout io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds the captured output of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError is returned when a program exits with a nonzero code
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}

	return msg
}

// Executor runs commands
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// LookPathFunc resolves an executable name to a path
type LookPathFunc func(file string) (string, error)

type execExecutor struct {
	logger hclog.Logger
}

// New returns an Executor backed by os/exec
func New(logger hclog.Logger) Executor {
	return &execExecutor{logger: logger.Named("exec")}
}

func (e *execExecutor) Execute(ctx context.Context, c Command) (*Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stderr = &stderr

	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	} else {
		cmd.Stdout = &stdout
	}

	if len(c.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	e.logger.Debug("Running command", "cmd", c.String(), "dir", c.Dir)

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()

			return res, &ExitError{Command: c.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
		}

		// context cancellation or missing binary
		return res, fmt.Errorf("could not run %q: %w", c.String(), err)
	}

	e.logger.Debug("Command finished", "cmd", c.String())

	return res, nil
}
