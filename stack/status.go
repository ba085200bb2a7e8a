package stack

import (
	"context"
	"fmt"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
)

const statusProbeTimeout = 10 * time.Second

// Status checks every service once without retries. It does not change the deployment.
func (s *Stack) Status(ctx context.Context) *types.Report {
	report := s.newReport("status")

	for _, tier := range s.config.Manifest.Tiers {
		for _, svc := range tier.Services {
			report.Services = append(report.Services, s.checkOnce(ctx, tier, svc))
		}
	}

	report.Finished = s.now()

	var down int
	for _, st := range report.Services {
		if st.State != types.StateReady {
			down++
		}
	}

	if down > 0 {
		report.Err = fmt.Errorf("%d of %d services not ready", down, len(report.Services))
	}

	return report
}

func (s *Stack) checkOnce(ctx context.Context, tier types.Tier, svc types.Service) types.ServiceStatus {
	state, err := s.containers.ContainerState(ctx, svc.ContainerName())
	if err != nil {
		return s.status(tier, svc, types.StateNotStarted, 0, err)
	}

	if !state.Running {
		return s.status(tier, svc, types.StateNotStarted, 0, nil)
	}

	pr, err := s.newProbe(svc)
	if err != nil {
		return s.status(tier, svc, types.StateFailed, 0, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()

	if err = pr.Check(probeCtx); err != nil {
		return s.status(tier, svc, types.StateUnready, 1, err)
	}

	st := s.status(tier, svc, types.StateReady, 1, nil)
	if state.Health != "" {
		st.Detail = "health: " + state.Health
	}

	return st
}
