package stack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest_Default(t *testing.T) {
	m, err := LoadManifest("")
	require.NoError(t, err)

	var tiers []string
	for _, tier := range m.Tiers {
		tiers = append(tiers, tier.Name)
	}

	assert.Equal(t, []string{"datastores", "core", "telephony", "monitoring"}, tiers)

	_, svc, ok := m.Find("freeswitch")
	require.True(t, ok)
	assert.Equal(t, types.ProbeCommand, svc.Probe.Type)
}

func TestParseManifest_SortsByRank(t *testing.T) {
	m, err := ParseManifest([]byte(`
tiers:
  - name: monitoring
    rank: 9
    services:
      - name: grafana
        probe: {type: http, url: "http://localhost:3001/api/health"}
  - name: datastores
    rank: 1
    services:
      - name: postgres
        container: db
        probe: {type: postgres}
`))
	require.NoError(t, err)
	require.Len(t, m.Tiers, 2)
	assert.Equal(t, "datastores", m.Tiers[0].Name)
	assert.Equal(t, []string{"db"}, m.Tiers[0].ContainerNames())
	assert.Equal(t, []string{"db", "grafana"}, m.AllContainerNames())
}

func TestParseManifest_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{"empty", `tiers: []`, ErrEmptyManifest},
		{"duplicate", `
tiers:
  - name: a
    services:
      - {name: redis, probe: {type: redis}}
  - name: b
    services:
      - {name: redis, probe: {type: redis}}
`, ErrDuplicateServiceName},
		{"unknown probe", `
tiers:
  - name: a
    services:
      - {name: kamailio, probe: {type: sip}}
`, ErrUnknownProbe},
		{"tcp without address", `
tiers:
  - name: a
    services:
      - {name: kamailio, probe: {type: tcp}}
`, ErrIncompleteProbe},
		{"tier without services", `
tiers:
  - name: datastores
    rank: 1
    services: []
  - name: core
    rank: 2
    services:
      - {name: api, probe: {type: container}}
`, ErrEmptyTier},
		{"service without name", `
tiers:
  - name: core
    services:
      - {name: "", probe: {type: container}}
`, ErrUnnamedService},
		{"tier without name", `
tiers:
  - services:
      - {name: api, probe: {type: container}}
`, ErrUnnamedTier},
		{"duplicate tier", `
tiers:
  - name: core
    services:
      - {name: api, probe: {type: container}}
  - name: core
    services:
      - {name: worker, probe: {type: container}}
`, ErrDuplicateTierName},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(c.yaml))
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestLoadManifest_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  - name: only
    services:
      - {name: api, probe: {type: container}}
`), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, m.Tiers, 1)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
