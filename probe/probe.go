// Package probe holds the readiness checks run against deployed services and the
// fixed-interval poller that drives them.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected http status")
	ErrNotHealthy       = errors.New("container is not healthy")
	ErrNotRunning       = errors.New("container is not running")
)

// Probe performs a single readiness check
type Probe interface {
	Check(ctx context.Context) error
	String() string
}

// TCP succeeds when a TCP connection to Address can be established
type TCP struct {
	Address string
	Timeout time.Duration
}

func (p TCP) Check(ctx context.Context) error {
	d := net.Dialer{Timeout: p.Timeout}

	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}

	return conn.Close()
}

func (p TCP) String() string { return "tcp " + p.Address }

// HTTP succeeds on a GET returning ExpectStatus, or any status below 400 when unset
type HTTP struct {
	URL          string
	ExpectStatus int
	Client       *http.Client
}

func (p HTTP) Check(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	_ = resp.Body.Close()

	if p.ExpectStatus != 0 && resp.StatusCode != p.ExpectStatus {
		return fmt.Errorf("%w: got %d want %d", ErrUnexpectedStatus, resp.StatusCode, p.ExpectStatus)
	}

	if p.ExpectStatus == 0 && resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return nil
}

func (p HTTP) String() string { return "http " + p.URL }

// Postgres connects with pgx and pings the server
type Postgres struct {
	DSN string
}

func (p Postgres) Check(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.DSN)
	if err != nil {
		return err
	}

	defer conn.Close(ctx)

	return conn.Ping(ctx)
}

func (p Postgres) String() string { return "postgres" }

// Redis sends PING
type Redis struct {
	Addr     string
	Password string
}

func (p Redis) Check(ctx context.Context) error {
	cl := redis.NewClient(&redis.Options{
		Addr:     p.Addr,
		Password: p.Password,
	})

	defer cl.Close()

	return cl.Ping(ctx).Err()
}

func (p Redis) String() string { return "redis " + p.Addr }

// CommandRunner executes a command inside a compose service
type CommandRunner interface {
	Exec(ctx context.Context, service string, args ...string) error
}

// Command succeeds when the command run inside Service exits with 0
type Command struct {
	Runner  CommandRunner
	Service string
	Args    []string
}

func (p Command) Check(ctx context.Context) error {
	return p.Runner.Exec(ctx, p.Service, p.Args...)
}

func (p Command) String() string {
	return fmt.Sprintf("command %s: %s", p.Service, strings.Join(p.Args, " "))
}

// ContainerState is the subset of container state used for readiness
type ContainerState struct {
	Running bool
	// Health is empty when the container has no healthcheck
	Health string
}

// ContainerInspector returns the state of the container backing a compose service
type ContainerInspector interface {
	ContainerState(ctx context.Context, service string) (ContainerState, error)
}

// Container succeeds when the service container is running and healthy
type Container struct {
	Inspector ContainerInspector
	Service   string
}

func (p Container) Check(ctx context.Context) error {
	state, err := p.Inspector.ContainerState(ctx, p.Service)
	if err != nil {
		return err
	}

	if !state.Running {
		return ErrNotRunning
	}

	if state.Health != "" && state.Health != "healthy" {
		return fmt.Errorf("%w: %s", ErrNotHealthy, state.Health)
	}

	return nil
}

func (p Container) String() string { return "container " + p.Service }
