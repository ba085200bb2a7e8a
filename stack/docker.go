package stack

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/probe"
	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/hashicorp/go-hclog"
)

const (
	composeProjectLabel = "com.docker.compose.project"
	composeServiceLabel = "com.docker.compose.service"
)

var (
	ErrContainerNotFound = errors.New("container not found")
	ErrFileNotInArchive  = errors.New("file not found in container archive")
)

// LogOptions controls container log output
type LogOptions struct {
	Follow     bool
	Tail       string
	Timestamps bool
}

// Docker talks to the Docker Engine API about the containers of one compose project
type Docker struct {
	cl      *client.Client
	project string
	logger  hclog.Logger
}

func NewDocker(project string, logger hclog.Logger) (*Docker, error) {
	lg := logger.Named("docker")

	lg.Debug("Creating new docker client instance")

	dCl, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("could not create new docker client instance err=%w", err)
	}

	lg.Debug("New docker client instance created")

	return &Docker{
		cl:      dCl,
		project: project,
		logger:  lg,
	}, nil
}

func (d *Docker) Close() error {
	return d.cl.Close()
}

// containerID finds the container created by compose for the service
func (d *Docker) containerID(ctx context.Context, service string) (string, error) {
	list, err := d.cl.ContainerList(ctx, dockertypes.ContainerListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", composeProjectLabel+"="+d.project),
			filters.Arg("label", composeServiceLabel+"="+service),
		),
	})
	if err != nil {
		return "", fmt.Errorf("could not list containers: %w", err)
	}

	if len(list) == 0 {
		return "", fmt.Errorf("%w: %s", ErrContainerNotFound, service)
	}

	return list[0].ID, nil
}

func (d *Docker) ContainerState(ctx context.Context, service string) (probe.ContainerState, error) {
	id, err := d.containerID(ctx, service)
	if err != nil {
		return probe.ContainerState{}, err
	}

	details, err := d.cl.ContainerInspect(ctx, id)
	if err != nil {
		return probe.ContainerState{}, fmt.Errorf("could not inspect container: %w", err)
	}

	if details.ContainerJSONBase == nil || details.State == nil {
		return probe.ContainerState{}, nil
	}

	state := probe.ContainerState{Running: details.State.Running}
	if details.State.Health != nil {
		state.Health = details.State.Health.Status
	}

	return state, nil
}

func (d *Docker) Restart(ctx context.Context, service string, timeout time.Duration) error {
	id, err := d.containerID(ctx, service)
	if err != nil {
		return err
	}

	d.logger.Debug("Restarting container", "service", service, "id", id)

	if err = d.cl.ContainerRestart(ctx, id, &timeout); err != nil {
		return fmt.Errorf("could not restart container %s: %w", service, err)
	}

	return nil
}

func (d *Docker) Logs(ctx context.Context, service string, opts LogOptions, stdout, stderr io.Writer) error {
	id, err := d.containerID(ctx, service)
	if err != nil {
		return err
	}

	details, err := d.cl.ContainerInspect(ctx, id)
	if err != nil {
		return fmt.Errorf("could not inspect container: %w", err)
	}

	out, err := d.cl.ContainerLogs(ctx, id, dockertypes.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Tail:       opts.Tail,
		Timestamps: opts.Timestamps,
	})
	if err != nil {
		return fmt.Errorf("could not get container logs: %w", err)
	}

	defer out.Close()

	// tty containers do not multiplex stdout and stderr
	if details.Config != nil && details.Config.Tty {
		_, err = io.Copy(stdout, out)

		return err
	}

	_, err = stdcopy.StdCopy(stdout, stderr, out)

	return err
}

// CopyFile copies a single file out of the service container into dst
func (d *Docker) CopyFile(ctx context.Context, service, path string, dst io.Writer) error {
	id, err := d.containerID(ctx, service)
	if err != nil {
		return err
	}

	rc, _, err := d.cl.CopyFromContainer(ctx, id, path)
	if err != nil {
		return fmt.Errorf("could not copy %s from %s: %w", path, service, err)
	}

	defer rc.Close()

	tr := tar.NewReader(rc)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s", ErrFileNotInArchive, path)
		}

		if err != nil {
			return fmt.Errorf("could not read container archive: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		if _, err = io.Copy(dst, tr); err != nil {
			return fmt.Errorf("could not write %s: %w", path, err)
		}

		return nil
	}
}
