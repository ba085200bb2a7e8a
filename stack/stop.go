package stack

import (
	"context"
	"fmt"

	"github.com/ZeljkoBenovic/cpaasctl/config"
)

// Stop stops the services in reverse tier order. It is the explicit cleanup after a failed deploy.
func (s *Stack) Stop(ctx context.Context) error {
	if err := s.checkExecutables(); err != nil {
		return err
	}

	tiers := s.config.Manifest.Tiers

	for i := len(tiers) - 1; i >= 0; i-- {
		tier := tiers[i]
		s.logger.Info("Stopping tier", "tier", tier.Name)

		if err := s.compose.Stop(ctx, tier.ContainerNames()...); err != nil {
			return fmt.Errorf("could not stop tier %s: %w", tier.Name, err)
		}
	}

	s.logger.Info("All tiers stopped")

	return nil
}

func (s *Stack) checkExecutables() error {
	var missing []string

	for _, bin := range s.config.Executables {
		if _, err := s.lookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}

	if len(missing) > 0 {
		return &config.MissingError{Executables: missing}
	}

	return nil
}
