// Package compose issues docker compose commands for a single project
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ZeljkoBenovic/cpaasctl/executor"
	"github.com/hashicorp/go-hclog"
)

// ErrNoServices is returned by Up and Stop when no service is named.
// Without names docker compose acts on every service of the project.
var ErrNoServices = errors.New("no services given")

// Compose runs docker compose against one compose file and project
type Compose struct {
	file    string
	project string
	exec    executor.Executor
	logger  hclog.Logger
}

func New(file, project string, exec executor.Executor, logger hclog.Logger) *Compose {
	return &Compose{
		file:    file,
		project: project,
		exec:    exec,
		logger:  logger.Named("compose"),
	}
}

func (c *Compose) Project() string {
	return c.project
}

// Up starts the given services detached
func (c *Compose) Up(ctx context.Context, services ...string) error {
	if err := requireServices(services); err != nil {
		return fmt.Errorf("docker compose up: %w", err)
	}

	c.logger.Info("Starting services", "services", services)

	return c.run(ctx, nil, append([]string{"up", "-d"}, services...)...)
}

// Stop stops the given services
func (c *Compose) Stop(ctx context.Context, services ...string) error {
	if err := requireServices(services); err != nil {
		return fmt.Errorf("docker compose stop: %w", err)
	}

	c.logger.Info("Stopping services", "services", services)

	return c.run(ctx, nil, append([]string{"stop"}, services...)...)
}

// Pull fetches newer images for the given services
func (c *Compose) Pull(ctx context.Context, services ...string) error {
	c.logger.Info("Pulling images", "services", services)

	return c.run(ctx, nil, append([]string{"pull"}, services...)...)
}

// Build builds every image of the project in parallel.
// The parallelism belongs to docker compose.
func (c *Compose) Build(ctx context.Context) error {
	c.logger.Info("Building images")

	return c.run(ctx, nil, "build", "--parallel")
}

// Exec runs a command inside the service container without a TTY
func (c *Compose) Exec(ctx context.Context, service string, args ...string) error {
	return c.run(ctx, nil, append([]string{"exec", "-T", service}, args...)...)
}

// ExecTo runs a command inside the service container and streams its stdout to out
func (c *Compose) ExecTo(ctx context.Context, out io.Writer, service string, args ...string) error {
	return c.run(ctx, out, append([]string{"exec", "-T", service}, args...)...)
}

func requireServices(services []string) error {
	if len(services) == 0 {
		return ErrNoServices
	}

	for _, svc := range services {
		if svc == "" {
			return ErrNoServices
		}
	}

	return nil
}

func (c *Compose) run(ctx context.Context, out io.Writer, args ...string) error {
	cmd := executor.Command{
		Name:   "docker",
		Args:   append([]string{"compose", "-f", c.file, "-p", c.project}, args...),
		Stdout: out,
	}

	if _, err := c.exec.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("docker compose %s failed: %w", args[0], err)
	}

	return nil
}
