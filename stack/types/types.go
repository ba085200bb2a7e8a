package types

import (
	"fmt"
	"strings"
	"time"
)

type ProbeKind string

const (
	ProbeTCP       ProbeKind = "tcp"
	ProbeHTTP      ProbeKind = "http"
	ProbePostgres  ProbeKind = "postgres"
	ProbeRedis     ProbeKind = "redis"
	ProbeCommand   ProbeKind = "command"
	ProbeContainer ProbeKind = "container"
)

// Manifest is the static list of service tiers, started in rank order
type Manifest struct {
	Tiers []Tier `yaml:"tiers"`
}

type Tier struct {
	Name     string    `yaml:"name"`
	Rank     int       `yaml:"rank"`
	Services []Service `yaml:"services"`
}

// Service describes one deployed service and how to tell it is ready
type Service struct {
	Name string `yaml:"name"`
	// Container is the compose service name, defaults to Name
	Container string `yaml:"container,omitempty"`
	Probe     Probe  `yaml:"probe"`
	// URL is printed in the status report, ${DOMAIN_NAME}, ${PUBLIC_IP} and ${SIP_PORT} are expanded
	URL string `yaml:"url,omitempty"`
}

func (s Service) ContainerName() string {
	if s.Container == "" {
		return s.Name
	}

	return s.Container
}

type Probe struct {
	Type         ProbeKind `yaml:"type"`
	Address      string    `yaml:"address,omitempty"`
	URL          string    `yaml:"url,omitempty"`
	ExpectStatus int       `yaml:"expect_status,omitempty"`
	Command      []string  `yaml:"command,omitempty"`
}

func (t Tier) ContainerNames() []string {
	names := make([]string, 0, len(t.Services))
	for _, svc := range t.Services {
		names = append(names, svc.ContainerName())
	}

	return names
}

// AllContainerNames returns the compose service names of every tier in order
func (m Manifest) AllContainerNames() []string {
	var names []string
	for _, tier := range m.Tiers {
		names = append(names, tier.ContainerNames()...)
	}

	return names
}

// Find returns the service with the given name
func (m Manifest) Find(name string) (Tier, Service, bool) {
	for _, tier := range m.Tiers {
		for _, svc := range tier.Services {
			if svc.Name == name {
				return tier, svc, true
			}
		}
	}

	return Tier{}, Service{}, false
}

type State string

const (
	StateReady      State = "ready"
	StateUnready    State = "unready"
	StateFailed     State = "failed"
	StateNotStarted State = "not started"
)

// ServiceStatus is the outcome for one service in a report
type ServiceStatus struct {
	Name      string
	Tier      string
	State     State
	Container string
	Attempts  int
	Detail    string
	URL       string
}

// Report is the aggregate result of a deploy, restart, update or status run
type Report struct {
	ID       string
	Action   string
	Started  time.Time
	Finished time.Time
	Services []ServiceStatus
	Err      error
}

func (r *Report) Succeeded() bool {
	return r.Err == nil
}

// Unready returns the names of services that did not become ready
func (r *Report) Unready() []string {
	var names []string
	for _, s := range r.Services {
		if s.State == StateUnready || s.State == StateFailed {
			names = append(names, s.Name)
		}
	}

	return names
}

// ReadinessError is returned when a tier does not become ready in time
type ReadinessError struct {
	Tier    string
	Unready []string
}

func (e *ReadinessError) Error() string {
	return fmt.Sprintf("tier %s not ready, unready services: %s", e.Tier, strings.Join(e.Unready, ", "))
}
