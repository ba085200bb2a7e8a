package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
)

// startFunc starts every service of a tier
type startFunc func(ctx context.Context, tier types.Tier) error

// Deploy validates prerequisites and brings the services up one tier at a time.
// Already started tiers are left running when a later tier fails.
func (s *Stack) Deploy(ctx context.Context) (*types.Report, error) {
	return s.rollout(ctx, "deploy", s.config.Manifest.Tiers, s.upTier)
}

func (s *Stack) upTier(ctx context.Context, tier types.Tier) error {
	return s.compose.Up(ctx, tier.ContainerNames()...)
}

func (s *Stack) rollout(ctx context.Context, action string, tiers []types.Tier, start startFunc) (*types.Report, error) {
	// nothing may touch the deployment before prerequisites are met
	if err := s.validate(); err != nil {
		s.logger.Error("Prerequisite check failed", "err", err)

		return nil, err
	}

	report := s.newReport(action)

	defer func() {
		report.Finished = s.now()
		s.saveReport(report)
	}()

	for i, tier := range tiers {
		s.logger.Info("Starting tier", "tier", tier.Name, "services", tier.ContainerNames())

		if err := start(ctx, tier); err != nil {
			s.logger.Error("Could not start tier", "tier", tier.Name, "err", err)

			for _, svc := range tier.Services {
				report.Services = append(report.Services, s.status(tier, svc, types.StateFailed, 0, err))
			}

			s.markNotStarted(report, tiers[i+1:])
			report.Err = fmt.Errorf("could not start tier %s: %w", tier.Name, err)

			return report, report.Err
		}

		if unready := s.awaitTier(ctx, tier, report); len(unready) > 0 {
			s.logger.Error("Tier not ready, aborting", "tier", tier.Name, "unready", unready)

			s.markNotStarted(report, tiers[i+1:])
			report.Err = &types.ReadinessError{Tier: tier.Name, Unready: unready}

			return report, report.Err
		}

		s.logger.Info("Tier ready", "tier", tier.Name)
	}

	s.logger.Info("All tiers ready", "action", action)

	return report, nil
}

// awaitTier polls every service of the tier within the tier timeout and returns the unready ones
func (s *Stack) awaitTier(ctx context.Context, tier types.Tier, report *types.Report) []string {
	tierCtx, cancel := context.WithTimeout(ctx, s.config.TierTimeout)
	defer cancel()

	var (
		unready []string
		poller  = s.poller()
	)

	for _, svc := range tier.Services {
		pr, err := s.newProbe(svc)
		if err != nil {
			unready = append(unready, svc.Name)
			report.Services = append(report.Services, s.status(tier, svc, types.StateFailed, 0, err))

			continue
		}

		attempts, err := poller.Poll(tierCtx, svc.Name, pr)
		if err != nil {
			unready = append(unready, svc.Name)
			report.Services = append(report.Services, s.status(tier, svc, types.StateUnready, attempts, err))

			continue
		}

		s.logger.Info("Service ready", "service", svc.Name, "attempts", attempts)
		report.Services = append(report.Services, s.status(tier, svc, types.StateReady, attempts, nil))
	}

	return unready
}

func (s *Stack) markNotStarted(report *types.Report, tiers []types.Tier) {
	for _, tier := range tiers {
		for _, svc := range tier.Services {
			report.Services = append(report.Services, s.status(tier, svc, types.StateNotStarted, 0, nil))
		}
	}
}

func (s *Stack) status(tier types.Tier, svc types.Service, state types.State, attempts int, err error) types.ServiceStatus {
	st := types.ServiceStatus{
		Name:      svc.Name,
		Tier:      tier.Name,
		State:     state,
		Container: svc.ContainerName(),
		Attempts:  attempts,
		URL:       s.config.Env.Expand(svc.URL),
	}

	if err != nil {
		st.Detail = err.Error()
	}

	return st
}

// IsReadinessError reports whether err is a tier readiness timeout
func IsReadinessError(err error) bool {
	var re *types.ReadinessError

	return errors.As(err, &re)
}
