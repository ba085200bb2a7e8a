package stack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/config"
	"github.com/ZeljkoBenovic/cpaasctl/db"
	"github.com/ZeljkoBenovic/cpaasctl/probe"
	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// events is a shared, ordered log of every side effect the fakes observe
type events struct {
	log []string
}

func (e *events) add(format string, args ...any) {
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *events) index(entry string) int {
	for i, v := range e.log {
		if v == entry {
			return i
		}
	}

	return -1
}

func (e *events) withPrefix(prefix string) []string {
	var out []string

	for _, v := range e.log {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}

	return out
}

type fakeCompose struct {
	ev    *events
	upErr error
}

func (f *fakeCompose) Up(_ context.Context, services ...string) error {
	f.ev.add("up:%s", strings.Join(services, ","))

	return f.upErr
}

func (f *fakeCompose) Stop(_ context.Context, services ...string) error {
	f.ev.add("stop:%s", strings.Join(services, ","))

	return nil
}

func (f *fakeCompose) Pull(_ context.Context, services ...string) error {
	f.ev.add("pull:%s", strings.Join(services, ","))

	return nil
}

func (f *fakeCompose) Build(context.Context) error {
	f.ev.add("build")

	return nil
}

func (f *fakeCompose) Exec(_ context.Context, service string, args ...string) error {
	f.ev.add("exec:%s:%s", service, strings.Join(args, " "))

	return nil
}

type fakeContainers struct {
	ev     *events
	states map[string]probe.ContainerState
}

func (f *fakeContainers) ContainerState(_ context.Context, service string) (probe.ContainerState, error) {
	st, ok := f.states[service]
	if !ok {
		return probe.ContainerState{}, ErrContainerNotFound
	}

	return st, nil
}

func (f *fakeContainers) Restart(_ context.Context, service string, _ time.Duration) error {
	f.ev.add("restart:%s", service)

	return nil
}

func (f *fakeContainers) Logs(_ context.Context, service string, _ LogOptions, stdout, _ io.Writer) error {
	_, err := io.WriteString(stdout, "logs of "+service)

	return err
}

// fakeProbe logs every check and succeeds once readyAfter checks were made.
// readyAfter 0 never succeeds.
type fakeProbe struct {
	ev         *events
	name       string
	readyAfter int
	calls      int
}

func (p *fakeProbe) Check(context.Context) error {
	p.calls++
	p.ev.add("probe:%s", p.name)

	if p.readyAfter > 0 && p.calls >= p.readyAfter {
		return nil
	}

	return errors.New("connection refused")
}

func (p *fakeProbe) String() string { return "fake " + p.name }

func testManifest() types.Manifest {
	svc := func(name string) types.Service {
		return types.Service{Name: name, Probe: types.Probe{Type: types.ProbeContainer}}
	}

	return types.Manifest{Tiers: []types.Tier{
		{Name: "datastores", Rank: 1, Services: []types.Service{svc("postgres"), svc("redis")}},
		{Name: "core", Rank: 2, Services: []types.Service{
			{Name: "api", Probe: types.Probe{Type: types.ProbeContainer}, URL: "https://${DOMAIN_NAME}"},
			svc("worker"),
		}},
		{Name: "telephony", Rank: 3, Services: []types.Service{svc("kamailio"), {Name: "freeswitch", Container: "media", Probe: types.Probe{Type: types.ProbeContainer}}}},
		{Name: "monitoring", Rank: 4, Services: []types.Service{svc("prometheus")}},
	}}
}

func testEnv() config.Config {
	return config.Config{
		DomainName: "cpaas.example.com",
		PublicIP:   "203.0.113.10",
		Postgres:   config.Postgres{Password: "secret"},
		SIP:        config.SIP{Port: 5060, RTPPortRange: "10000-20000"},
		Backup:     config.Backup{KeepLocal: 7},
	}
}

type harness struct {
	stack      *Stack
	ev         *events
	compose    *fakeCompose
	containers *fakeContainers
	probes     map[string]*fakeProbe
	db         db.IDB
}

// newHarness builds a stack whose probes become ready after readyAfter[name] checks, default 1
func newHarness(t *testing.T, env config.Config, readyAfter map[string]int) *harness {
	t.Helper()

	ev := &events{}

	dbInst, err := db.NewDB(hclog.NewNullLogger(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbInst.Close() })

	h := &harness{
		ev:         ev,
		compose:    &fakeCompose{ev: ev},
		containers: &fakeContainers{ev: ev, states: map[string]probe.ContainerState{}},
		probes:     map[string]*fakeProbe{},
		db:         dbInst,
	}

	h.stack = NewStack(Config{
		Env:          env,
		Manifest:     testManifest(),
		TierTimeout:  time.Second,
		PollInterval: time.Millisecond,
		MaxAttempts:  3,
		Executables:  []string{"docker"},
	}, hclog.NewNullLogger(), dbInst, h.compose, h.containers)

	h.stack.lookPath = func(string) (string, error) { return "/usr/bin/docker", nil }
	h.stack.newProbe = func(svc types.Service) (probe.Probe, error) {
		after, ok := readyAfter[svc.Name]
		if !ok {
			after = 1
		}

		p := &fakeProbe{ev: ev, name: svc.Name, readyAfter: after}
		h.probes[svc.Name] = p

		return p, nil
	}

	return h
}

func TestDeploy_StartsTiersInOrder(t *testing.T) {
	h := newHarness(t, testEnv(), map[string]int{"redis": 2, "worker": 3})

	report, err := h.stack.Deploy(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, []string{
		"up:postgres,redis",
		"up:api,worker",
		"up:kamailio,media",
		"up:prometheus",
	}, h.ev.withPrefix("up:"))

	// every probe of tier n happens before tier n+1 is started
	assert.Less(t, h.ev.index("probe:redis"), h.ev.index("up:api,worker"))
	assert.Less(t, h.ev.index("up:api,worker"), h.ev.index("probe:api"))
	assert.Less(t, lastIndex(h.ev.log, "probe:worker"), h.ev.index("up:kamailio,media"))

	assert.Equal(t, 2, h.probes["redis"].calls)
	assert.Equal(t, 3, h.probes["worker"].calls)
	assert.Equal(t, 1, h.probes["postgres"].calls)

	require.Len(t, report.Services, 7)

	for _, st := range report.Services {
		assert.Equal(t, types.StateReady, st.State, st.Name)
	}

	assert.Equal(t, "https://cpaas.example.com", report.Services[2].URL)
	assert.True(t, report.Succeeded())

	last, err := h.db.GetLastDeployment()
	require.NoError(t, err)
	assert.Equal(t, report.ID, last.ID)
	assert.Equal(t, "deploy", last.Action)
	assert.True(t, last.Succeeded)
}

func lastIndex(log []string, entry string) int {
	idx := -1

	for i, v := range log {
		if v == entry {
			idx = i
		}
	}

	return idx
}

func TestDeploy_AbortsWhenTierNeverReady(t *testing.T) {
	h := newHarness(t, testEnv(), map[string]int{"api": 0})

	report, err := h.stack.Deploy(context.Background())
	require.Error(t, err)

	var readinessErr *types.ReadinessError
	require.True(t, errors.As(err, &readinessErr))
	assert.Equal(t, "core", readinessErr.Tier)
	assert.Equal(t, []string{"api"}, readinessErr.Unready)
	assert.True(t, IsReadinessError(err))

	// the poller stops at MaxAttempts
	assert.Equal(t, 3, h.probes["api"].calls)

	// later tiers are never started and nothing is rolled back
	assert.Equal(t, []string{"up:postgres,redis", "up:api,worker"}, h.ev.withPrefix("up:"))
	assert.Empty(t, h.ev.withPrefix("stop:"))

	states := map[string]types.State{}
	for _, st := range report.Services {
		states[st.Name] = st.State
	}

	assert.Equal(t, types.StateReady, states["postgres"])
	assert.Equal(t, types.StateUnready, states["api"])
	assert.Equal(t, types.StateReady, states["worker"])
	assert.Equal(t, types.StateNotStarted, states["kamailio"])
	assert.Equal(t, types.StateNotStarted, states["prometheus"])
	assert.Equal(t, []string{"api"}, report.Unready())

	last, err := h.db.GetLastDeployment()
	require.NoError(t, err)
	assert.False(t, last.Succeeded)
	assert.Equal(t, []string{"api"}, last.Unready)
}

func TestDeploy_TierTimeout(t *testing.T) {
	h := newHarness(t, testEnv(), map[string]int{"postgres": 0})
	h.stack.config.TierTimeout = 30 * time.Millisecond
	h.stack.config.PollInterval = 5 * time.Millisecond
	h.stack.config.MaxAttempts = 100000

	_, err := h.stack.Deploy(context.Background())
	require.Error(t, err)

	var readinessErr *types.ReadinessError
	require.True(t, errors.As(err, &readinessErr))
	assert.Equal(t, "datastores", readinessErr.Tier)
	assert.Contains(t, readinessErr.Unready, "postgres")
	assert.Equal(t, []string{"up:postgres,redis"}, h.ev.withPrefix("up:"))
}

func TestDeploy_MissingPublicIPStartsNothing(t *testing.T) {
	env := testEnv()
	env.PublicIP = ""

	h := newHarness(t, env, nil)

	report, err := h.stack.Deploy(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)

	var missing *config.MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"PUBLIC_IP"}, missing.Variables)

	assert.Empty(t, h.ev.log)

	_, err = h.db.GetLastDeployment()
	assert.ErrorIs(t, err, db.ErrNoDeployments)
}

func TestDeploy_MissingExecutableStartsNothing(t *testing.T) {
	h := newHarness(t, testEnv(), nil)
	h.stack.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := h.stack.Deploy(context.Background())

	var missing *config.MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"docker"}, missing.Executables)
	assert.Empty(t, h.ev.log)
}

func TestDeploy_UpFailure(t *testing.T) {
	h := newHarness(t, testEnv(), nil)
	h.compose.upErr = errors.New("pull access denied")

	report, err := h.stack.Deploy(context.Background())
	require.Error(t, err)
	assert.False(t, IsReadinessError(err))
	assert.Empty(t, h.ev.withPrefix("probe:"))
	assert.Equal(t, []string{"postgres", "redis"}, report.Unready())
}

func TestStop_ReverseTierOrder(t *testing.T) {
	h := newHarness(t, testEnv(), nil)

	require.NoError(t, h.stack.Stop(context.Background()))
	assert.Equal(t, []string{
		"stop:prometheus",
		"stop:kamailio,media",
		"stop:api,worker",
		"stop:postgres,redis",
	}, h.ev.log)
}

func TestRestart(t *testing.T) {
	t.Run("selected services", func(t *testing.T) {
		h := newHarness(t, testEnv(), nil)

		report, err := h.stack.Restart(context.Background(), "freeswitch", "postgres")
		require.NoError(t, err)

		assert.Equal(t, []string{"restart:postgres", "restart:media"}, h.ev.withPrefix("restart:"))
		assert.Empty(t, h.ev.withPrefix("up:"))
		require.Len(t, report.Services, 2)
		assert.Equal(t, "restart", report.Action)
	})

	t.Run("all services", func(t *testing.T) {
		h := newHarness(t, testEnv(), nil)

		_, err := h.stack.Restart(context.Background())
		require.NoError(t, err)
		assert.Len(t, h.ev.withPrefix("restart:"), 7)
	})

	t.Run("unknown service", func(t *testing.T) {
		h := newHarness(t, testEnv(), nil)

		_, err := h.stack.Restart(context.Background(), "opensips")
		assert.ErrorIs(t, err, ErrUnknownService)
		assert.Empty(t, h.ev.log)
	})
}

func TestUpdate_PullsAndBuildsBeforeDeploy(t *testing.T) {
	h := newHarness(t, testEnv(), nil)

	report, err := h.stack.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "update", report.Action)

	assert.Equal(t, "pull:postgres,redis,api,worker,kamailio,media,prometheus", h.ev.log[0])
	assert.Equal(t, "build", h.ev.log[1])
	assert.Equal(t, "up:postgres,redis", h.ev.log[2])
}

func TestStatus(t *testing.T) {
	h := newHarness(t, testEnv(), map[string]int{"api": 0})
	h.containers.states = map[string]probe.ContainerState{
		"postgres":   {Running: true, Health: "healthy"},
		"redis":      {Running: true},
		"api":        {Running: true},
		"worker":     {Running: false},
		"kamailio":   {Running: true},
		"media":      {Running: true},
		"prometheus": {Running: true},
	}

	report := h.stack.Status(context.Background())
	require.Error(t, report.Err)

	states := map[string]types.ServiceStatus{}
	for _, st := range report.Services {
		states[st.Name] = st
	}

	assert.Equal(t, types.StateReady, states["postgres"].State)
	assert.Equal(t, "health: healthy", states["postgres"].Detail)
	assert.Equal(t, types.StateUnready, states["api"].State)
	assert.Equal(t, types.StateNotStarted, states["worker"].State)
	assert.ElementsMatch(t, []string{"api"}, report.Unready())

	// status never starts or stops anything
	assert.Empty(t, h.ev.withPrefix("up:"))
	assert.Empty(t, h.ev.withPrefix("stop:"))
}

func TestLogs_ResolvesContainerName(t *testing.T) {
	h := newHarness(t, testEnv(), nil)

	var out strings.Builder
	require.NoError(t, h.stack.Logs(context.Background(), "freeswitch", LogOptions{Tail: "10"}, &out, io.Discard))
	assert.Equal(t, "logs of media", out.String())
}

func TestProbeFor(t *testing.T) {
	h := newHarness(t, testEnv(), nil)

	pr, err := h.stack.probeFor(types.Service{Name: "kamailio", Probe: types.Probe{Type: types.ProbeTCP, Address: "127.0.0.1:${SIP_PORT}"}})
	require.NoError(t, err)
	assert.Equal(t, "tcp 127.0.0.1:5060", pr.String())

	pr, err = h.stack.probeFor(types.Service{Name: "freeswitch", Container: "media", Probe: types.Probe{Type: types.ProbeCommand, Command: []string{"fs_cli", "-x", "status"}}})
	require.NoError(t, err)
	require.NoError(t, pr.Check(context.Background()))
	assert.Equal(t, "exec:media:fs_cli -x status", h.ev.log[0])

	_, err = h.stack.probeFor(types.Service{Name: "x", Probe: types.Probe{Type: "icmp"}})
	assert.ErrorIs(t, err, ErrUnknownProbe)
}
