package stack

import (
	"context"
	"io"
)

// Logs writes the container logs of the service. Names not in the manifest
// are passed through as compose service names.
func (s *Stack) Logs(ctx context.Context, service string, opts LogOptions, stdout, stderr io.Writer) error {
	container := service
	if _, svc, ok := s.config.Manifest.Find(service); ok {
		container = svc.ContainerName()
	}

	s.logger.Debug("Fetching logs", "service", service, "container", container, "follow", opts.Follow)

	return s.containers.Logs(ctx, container, opts, stdout, stderr)
}
