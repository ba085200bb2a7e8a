package stack

import (
	"context"
	"fmt"

	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
)

// Update pulls and builds newer images, then redeploys tier by tier
func (s *Stack) Update(ctx context.Context) (*types.Report, error) {
	if err := s.validate(); err != nil {
		s.logger.Error("Prerequisite check failed", "err", err)

		return nil, err
	}

	if err := s.compose.Pull(ctx, s.config.Manifest.AllContainerNames()...); err != nil {
		return nil, fmt.Errorf("could not pull images: %w", err)
	}

	if err := s.compose.Build(ctx); err != nil {
		return nil, fmt.Errorf("could not build images: %w", err)
	}

	return s.rollout(ctx, "update", s.config.Manifest.Tiers, s.upTier)
}
