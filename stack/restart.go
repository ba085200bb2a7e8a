package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
)

var ErrUnknownService = errors.New("unknown service")

// Restart restarts the containers tier by tier and waits for readiness after each tier.
// With no service names every service is restarted.
func (s *Stack) Restart(ctx context.Context, services ...string) (*types.Report, error) {
	tiers, err := s.selectTiers(services)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Restarting services", "services", services)

	return s.rollout(ctx, "restart", tiers, s.restartTier)
}

func (s *Stack) restartTier(ctx context.Context, tier types.Tier) error {
	for _, svc := range tier.Services {
		if err := s.containers.Restart(ctx, svc.ContainerName(), DefaultRestartTimeout); err != nil {
			s.logger.Error("Could not restart container", "service", svc.Name, "err", err)

			return err
		}

		s.logger.Debug("Container restarted", "service", svc.Name)
	}

	return nil
}

// selectTiers keeps only the named services, preserving tier order
func (s *Stack) selectTiers(services []string) ([]types.Tier, error) {
	if len(services) == 0 {
		return s.config.Manifest.Tiers, nil
	}

	wanted := make(map[string]bool, len(services))

	for _, name := range services {
		if _, _, ok := s.config.Manifest.Find(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
		}

		wanted[name] = true
	}

	var tiers []types.Tier

	for _, tier := range s.config.Manifest.Tiers {
		selected := types.Tier{Name: tier.Name, Rank: tier.Rank}

		for _, svc := range tier.Services {
			if wanted[svc.Name] {
				selected.Services = append(selected.Services, svc)
			}
		}

		if len(selected.Services) > 0 {
			tiers = append(tiers, selected)
		}
	}

	return tiers, nil
}
