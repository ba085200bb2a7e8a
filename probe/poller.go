package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 60
)

var ErrNotReady = errors.New("service not ready")

// Poller retries a probe at a fixed interval. There is no backoff.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      hclog.Logger
}

// Poll runs the probe until it succeeds, MaxAttempts is exhausted or ctx ends.
// It returns the number of attempts made.
func (p Poller) Poll(ctx context.Context, name string, pr Probe) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	logger := p.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = pr.Check(ctx)
		if lastErr == nil {
			logger.Debug("Service ready", "service", name, "probe", pr.String(), "attempt", attempt)

			return attempt, nil
		}

		logger.Debug("Service not ready yet",
			"service", name,
			"probe", pr.String(),
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"err", lastErr)

		if attempt == maxAttempts {
			return attempt, fmt.Errorf("%w: %s after %d attempts: %v", ErrNotReady, name, attempt, lastErr)
		}

		t := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			t.Stop()

			return attempt, fmt.Errorf("%w: %s: %w", ErrNotReady, name, ctx.Err())
		case <-t.C:
		}
	}

	return maxAttempts, fmt.Errorf("%w: %s: %v", ErrNotReady, name, lastErr)
}
