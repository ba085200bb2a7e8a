// Package stack starts, stops and inspects the CPaaS services one tier at a time
package stack

import (
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/config"
	"github.com/ZeljkoBenovic/cpaasctl/db"
	"github.com/ZeljkoBenovic/cpaasctl/executor"
	"github.com/ZeljkoBenovic/cpaasctl/probe"
	"github.com/ZeljkoBenovic/cpaasctl/stack/types"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const (
	DefaultTierTimeout    = 5 * time.Minute
	DefaultRestartTimeout = 30 * time.Second
)

type Config struct {
	Env      config.Config
	Manifest types.Manifest

	TierTimeout  time.Duration
	PollInterval time.Duration
	MaxAttempts  int

	// Executables that must be on PATH before anything runs
	Executables []string
}

// Composer issues docker compose actions
type Composer interface {
	Up(ctx context.Context, services ...string) error
	Stop(ctx context.Context, services ...string) error
	Pull(ctx context.Context, services ...string) error
	Build(ctx context.Context) error
	Exec(ctx context.Context, service string, args ...string) error
}

// Containers inspects and drives running containers
type Containers interface {
	probe.ContainerInspector
	Restart(ctx context.Context, service string, timeout time.Duration) error
	Logs(ctx context.Context, service string, opts LogOptions, stdout, stderr io.Writer) error
}

type Stack struct {
	config     Config
	logger     hclog.Logger
	compose    Composer
	containers Containers
	db         db.IDB

	lookPath executor.LookPathFunc
	newProbe func(types.Service) (probe.Probe, error)
	now      func() time.Time
}

func NewStack(cfg Config, logger hclog.Logger, dbInst db.IDB, compose Composer, containers Containers) *Stack {
	if cfg.TierTimeout <= 0 {
		cfg.TierTimeout = DefaultTierTimeout
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = probe.DefaultInterval
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = probe.DefaultMaxAttempts
	}

	s := &Stack{
		config:     cfg,
		logger:     logger.Named("stack"),
		compose:    compose,
		containers: containers,
		db:         dbInst,
		lookPath:   exec.LookPath,
		now:        time.Now,
	}

	s.newProbe = s.probeFor

	return s
}

func (s *Stack) Manifest() types.Manifest {
	return s.config.Manifest
}

func (s *Stack) poller() probe.Poller {
	return probe.Poller{
		Interval:    s.config.PollInterval,
		MaxAttempts: s.config.MaxAttempts,
		Logger:      s.logger.Named("poller"),
	}
}

func (s *Stack) validate() error {
	return config.Validate(s.config.Env, s.config.Executables, s.lookPath)
}

func (s *Stack) newReport(action string) *types.Report {
	return &types.Report{
		ID:      uuid.NewString(),
		Action:  action,
		Started: s.now(),
	}
}

// saveReport stores the run in the state database, failures are only logged
func (s *Stack) saveReport(report *types.Report) {
	if s.db == nil {
		return
	}

	dep := db.Deployment{
		ID:        report.ID,
		Action:    report.Action,
		Started:   report.Started,
		Finished:  report.Finished,
		Succeeded: report.Succeeded(),
		Unready:   report.Unready(),
	}

	if report.Err != nil {
		dep.Error = report.Err.Error()
	}

	if err := s.db.SaveDeployment(dep); err != nil {
		s.logger.Error("Could not save deployment record", "id", report.ID, "err", err)
	}
}
