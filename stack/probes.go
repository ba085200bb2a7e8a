package stack

import (
	"fmt"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/probe"
	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
)

const tcpDialTimeout = 5 * time.Second

func (s *Stack) probeFor(svc types.Service) (probe.Probe, error) {
	env := s.config.Env

	switch svc.Probe.Type {
	case types.ProbeTCP:
		return probe.TCP{Address: env.Expand(svc.Probe.Address), Timeout: tcpDialTimeout}, nil
	case types.ProbeHTTP:
		return probe.HTTP{URL: env.Expand(svc.Probe.URL), ExpectStatus: svc.Probe.ExpectStatus}, nil
	case types.ProbePostgres:
		return probe.Postgres{DSN: env.PostgresDSN()}, nil
	case types.ProbeRedis:
		return probe.Redis{Addr: env.RedisAddr(), Password: env.Redis.Password}, nil
	case types.ProbeCommand:
		return probe.Command{Runner: s.compose, Service: svc.ContainerName(), Args: svc.Probe.Command}, nil
	case types.ProbeContainer:
		return probe.Container{Inspector: s.containers, Service: svc.ContainerName()}, nil
	default:
		return nil, fmt.Errorf("%w: %q for %s", ErrUnknownProbe, svc.Probe.Type, svc.Name)
	}
}
