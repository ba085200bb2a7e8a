package stack

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var defaultManifest []byte

var (
	ErrEmptyManifest        = errors.New("manifest has no tiers")
	ErrDuplicateServiceName = errors.New("duplicate service name")
	ErrUnknownProbe         = errors.New("unknown probe type")
	ErrIncompleteProbe      = errors.New("probe is missing a required field")
	ErrEmptyTier            = errors.New("tier has no services")
	ErrUnnamedTier          = errors.New("tier has no name")
	ErrDuplicateTierName    = errors.New("duplicate tier name")
	ErrUnnamedService       = errors.New("service has no name")
)

// LoadManifest reads the service manifest from path, or the built-in one when path is empty
func LoadManifest(path string) (types.Manifest, error) {
	data := defaultManifest

	if path != "" {
		var err error

		data, err = os.ReadFile(path)
		if err != nil {
			return types.Manifest{}, fmt.Errorf("could not read manifest: %w", err)
		}
	}

	return ParseManifest(data)
}

// ParseManifest decodes and validates a manifest. Tiers are returned sorted by rank.
func ParseManifest(data []byte) (types.Manifest, error) {
	var m types.Manifest

	if err := yaml.Unmarshal(data, &m); err != nil {
		return types.Manifest{}, fmt.Errorf("could not decode manifest: %w", err)
	}

	if len(m.Tiers) == 0 {
		return types.Manifest{}, ErrEmptyManifest
	}

	seen := make(map[string]struct{})
	tiers := make(map[string]struct{})

	for _, tier := range m.Tiers {
		if tier.Name == "" {
			return types.Manifest{}, ErrUnnamedTier
		}

		if _, ok := tiers[tier.Name]; ok {
			return types.Manifest{}, fmt.Errorf("%w: %s", ErrDuplicateTierName, tier.Name)
		}

		tiers[tier.Name] = struct{}{}

		// compose up and stop without service names act on the whole project
		if len(tier.Services) == 0 {
			return types.Manifest{}, fmt.Errorf("%w: %s", ErrEmptyTier, tier.Name)
		}

		for _, svc := range tier.Services {
			if svc.Name == "" {
				return types.Manifest{}, fmt.Errorf("%w: tier %s", ErrUnnamedService, tier.Name)
			}

			if _, ok := seen[svc.Name]; ok {
				return types.Manifest{}, fmt.Errorf("%w: %s", ErrDuplicateServiceName, svc.Name)
			}

			seen[svc.Name] = struct{}{}

			if err := validateProbe(svc); err != nil {
				return types.Manifest{}, err
			}
		}
	}

	sort.SliceStable(m.Tiers, func(i, j int) bool {
		return m.Tiers[i].Rank < m.Tiers[j].Rank
	})

	return m, nil
}

func validateProbe(svc types.Service) error {
	p := svc.Probe

	switch p.Type {
	case types.ProbeTCP:
		if p.Address == "" {
			return fmt.Errorf("%w: %s needs address", ErrIncompleteProbe, svc.Name)
		}
	case types.ProbeHTTP:
		if p.URL == "" {
			return fmt.Errorf("%w: %s needs url", ErrIncompleteProbe, svc.Name)
		}
	case types.ProbeCommand:
		if len(p.Command) == 0 {
			return fmt.Errorf("%w: %s needs command", ErrIncompleteProbe, svc.Name)
		}
	case types.ProbePostgres, types.ProbeRedis, types.ProbeContainer:
	default:
		return fmt.Errorf("%w: %q for %s", ErrUnknownProbe, p.Type, svc.Name)
	}

	return nil
}
