package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ZeljkoBenovic/cpaasctl/probe"
	"github.com/ZeljkoBenovic/cpaasctl/stack"
	"github.com/redis/go-redis/v9"
)

// Presence is the typed result of collecting one source
type Presence int

const (
	Present Presence = iota
	Absent
	Failed
)

func (p Presence) String() string {
	switch p {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "failed"
	}
}

// Outcome is what a source produced
type Outcome struct {
	Source string
	Status Presence
	Files  []string
	Err    error
}

// Source is one piece of state that goes into the archive
type Source interface {
	Name() string
	// Optional sources may be absent without failing the run
	Optional() bool
	Collect(ctx context.Context, dir string) Outcome
}

func failed(name string, err error) Outcome {
	return Outcome{Source: name, Status: Failed, Err: err}
}

// Dumper streams the output of a command run inside a compose service
type Dumper interface {
	ExecTo(ctx context.Context, out io.Writer, service string, args ...string) error
}

// PostgresDump runs pg_dump inside the database container
type PostgresDump struct {
	Dumper   Dumper
	Service  string
	User     string
	Database string
}

func (p PostgresDump) Name() string   { return "postgres" }
func (p PostgresDump) Optional() bool { return false }

func (p PostgresDump) Collect(ctx context.Context, dir string) Outcome {
	path := filepath.Join(dir, "postgres.sql")

	f, err := os.Create(path)
	if err != nil {
		return failed(p.Name(), fmt.Errorf("could not create dump file: %w", err))
	}

	err = p.Dumper.ExecTo(ctx, f, p.Service, "pg_dump", "-U", p.User, "-d", p.Database, "--no-owner")
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return failed(p.Name(), fmt.Errorf("could not dump database: %w", err))
	}

	return Outcome{Source: p.Name(), Status: Present, Files: []string{path}}
}

// RedisSaver forces redis to write its snapshot to disk
type RedisSaver interface {
	Save(ctx context.Context) error
}

type redisSaver struct {
	addr, password string
}

// NewRedisSaver returns a RedisSaver issuing SAVE over the redis protocol
func NewRedisSaver(addr, password string) RedisSaver {
	return redisSaver{addr: addr, password: password}
}

func (r redisSaver) Save(ctx context.Context) error {
	cl := redis.NewClient(&redis.Options{Addr: r.addr, Password: r.password})
	defer cl.Close()

	return cl.Save(ctx).Err()
}

// ContainerFiles reads files out of service containers
type ContainerFiles interface {
	probe.ContainerInspector
	CopyFile(ctx context.Context, service, path string, dst io.Writer) error
}

// RedisSnapshot saves the redis dataset and copies dump.rdb out of the container.
// A missing or stopped redis container is reported as absent.
type RedisSnapshot struct {
	Saver      RedisSaver
	Containers ContainerFiles
	Service    string
	DumpPath   string
}

func (r RedisSnapshot) Name() string   { return "redis" }
func (r RedisSnapshot) Optional() bool { return true }

func (r RedisSnapshot) Collect(ctx context.Context, dir string) Outcome {
	state, err := r.Containers.ContainerState(ctx, r.Service)
	if errors.Is(err, stack.ErrContainerNotFound) || (err == nil && !state.Running) {
		return Outcome{Source: r.Name(), Status: Absent}
	}

	if err != nil {
		return failed(r.Name(), err)
	}

	if err = r.Saver.Save(ctx); err != nil {
		return failed(r.Name(), fmt.Errorf("could not save redis snapshot: %w", err))
	}

	dumpPath := r.DumpPath
	if dumpPath == "" {
		dumpPath = "/data/dump.rdb"
	}

	path := filepath.Join(dir, "redis.rdb")

	f, err := os.Create(path)
	if err != nil {
		return failed(r.Name(), fmt.Errorf("could not create snapshot file: %w", err))
	}

	err = r.Containers.CopyFile(ctx, r.Service, dumpPath, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if errors.Is(err, stack.ErrFileNotInArchive) {
		_ = os.Remove(path)

		return Outcome{Source: r.Name(), Status: Absent}
	}

	if err != nil {
		return failed(r.Name(), err)
	}

	return Outcome{Source: r.Name(), Status: Present, Files: []string{path}}
}

// PathCopy copies local files or directories (configuration, logs) into the archive
type PathCopy struct {
	Label    string
	Paths    []string
	Required bool
}

func (p PathCopy) Name() string   { return p.Label }
func (p PathCopy) Optional() bool { return !p.Required }

func (p PathCopy) Collect(_ context.Context, dir string) Outcome {
	out := Outcome{Source: p.Label, Status: Absent}
	target := filepath.Join(dir, p.Label)

	for _, src := range p.Paths {
		if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return failed(p.Label, err)
		}

		dst := filepath.Join(target, filepath.Base(filepath.Clean(src)))
		if err := copyTree(src, dst); err != nil {
			return failed(p.Label, fmt.Errorf("could not copy %s: %w", src, err))
		}

		out.Status = Present
		out.Files = append(out.Files, dst)
	}

	return out
}

// copyTree copies a file or a directory tree, regular files only
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if !d.Type().IsRegular() {
			return nil
		}

		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}

	defer in.Close()

	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}
