// Package backup collects platform state into timestamped archives, ships them to object storage
// and enforces local and remote retention.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/db"
	"github.com/ZeljkoBenovic/cpaasctl/storage"
	"github.com/hashicorp/go-hclog"
)

const (
	DefaultKeepLocal       = 7
	DefaultRemoteRetention = 30 * 24 * time.Hour
)

var (
	ErrRestoreNotImplemented = errors.New("restore is not implemented")
	ErrRequiredSourceAbsent  = errors.New("required backup source is absent")
)

// Config options of the backup manager
type Config struct {
	Dir             string        // local archive directory
	KeepLocal       int           // number of newest local archives to keep
	RemoteRetention time.Duration // remote archives older than this are deleted
	RemotePrefix    string        // object key prefix
	StageRetries    int           // extra attempts for a failed stage
}

// Run is the state carried through the stages of a single backup
type Run struct {
	Name         string
	Started      time.Time
	Stage        Stage
	WorkDir      string
	ArchivePath  string
	Size         int64
	RemoteKey    string
	Outcomes     []Outcome
	PrunedLocal  []string
	PrunedRemote []string
	ReportPath   string
}

type Manager struct {
	config  Config
	sources []Source
	store   storage.ObjectStore
	db      db.IDB
	logger  hclog.Logger
	now     func() time.Time
}

// NewManager creates a backup manager. A nil store disables upload and remote retention.
func NewManager(cfg Config, sources []Source, store storage.ObjectStore, dbInst db.IDB, logger hclog.Logger) *Manager {
	if cfg.KeepLocal <= 0 {
		cfg.KeepLocal = DefaultKeepLocal
	}

	if cfg.RemoteRetention <= 0 {
		cfg.RemoteRetention = DefaultRemoteRetention
	}

	if cfg.StageRetries < 0 {
		cfg.StageRetries = 0
	}

	return &Manager{
		config:  cfg,
		sources: sources,
		store:   store,
		db:      dbInst,
		logger:  logger.Named("backup"),
		now:     time.Now,
	}
}

// Create runs a full backup. A failure is returned as *StageError naming the failed stage.
func (m *Manager) Create(ctx context.Context) (*Run, error) {
	started := m.now()
	run := &Run{
		Name:    RunName(started),
		Started: started,
		Stage:   StageCollecting,
	}

	run.WorkDir = filepath.Join(m.config.Dir, run.Name)
	run.ArchivePath = filepath.Join(m.config.Dir, run.Name+ArchiveExtension)

	m.logger.Info("Starting backup", "name", run.Name)

	for run.Stage != StageDone {
		if err := m.runStage(ctx, run); err != nil {
			serr := &StageError{Stage: run.Stage, Err: err}

			m.logger.Error("Backup failed", "stage", run.Stage.String(), "err", err)
			m.cleanupWorkDir(run)
			m.record(run, serr)

			return run, serr
		}

		run.Stage = transitions[run.Stage]
	}

	m.logger.Info("Backup completed", "archive", run.ArchivePath, "size", run.Size)

	return run, nil
}

func (m *Manager) runStage(ctx context.Context, run *Run) error {
	var err error

	for attempt := 0; attempt <= m.config.StageRetries; attempt++ {
		if attempt > 0 {
			m.logger.Warn("Retrying stage", "stage", run.Stage.String(), "attempt", attempt+1, "err", err)
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		m.logger.Debug("Running stage", "stage", run.Stage.String())

		if err = m.stage(ctx, run); err == nil {
			return nil
		}
	}

	return err
}

func (m *Manager) stage(ctx context.Context, run *Run) error {
	switch run.Stage {
	case StageCollecting:
		return m.collect(ctx, run)
	case StageCompressing:
		return m.compress(run)
	case StageUploading:
		return m.upload(ctx, run)
	case StageRetention:
		return m.retention(ctx, run)
	case StageReporting:
		return m.report(run)
	default:
		return fmt.Errorf("unknown stage %s", run.Stage)
	}
}

func (m *Manager) collect(ctx context.Context, run *Run) error {
	run.Outcomes = nil

	if err := os.RemoveAll(run.WorkDir); err != nil {
		return err
	}

	if err := os.MkdirAll(run.WorkDir, 0o750); err != nil {
		return fmt.Errorf("could not create working directory: %w", err)
	}

	for _, src := range m.sources {
		out := src.Collect(ctx, run.WorkDir)
		run.Outcomes = append(run.Outcomes, out)

		switch out.Status {
		case Present:
			m.logger.Info("Collected", "source", src.Name(), "files", len(out.Files))
		case Absent:
			if !src.Optional() {
				return fmt.Errorf("%w: %s", ErrRequiredSourceAbsent, src.Name())
			}

			m.logger.Warn("Optional source not found, skipping", "source", src.Name())
		default:
			return fmt.Errorf("could not collect %s: %w", src.Name(), out.Err)
		}
	}

	return nil
}

func (m *Manager) compress(run *Run) error {
	if err := createArchive(run.WorkDir, run.ArchivePath); err != nil {
		return err
	}

	info, err := os.Stat(run.ArchivePath)
	if err != nil {
		return err
	}

	run.Size = info.Size()

	return os.RemoveAll(run.WorkDir)
}

func (m *Manager) upload(ctx context.Context, run *Run) error {
	if m.store == nil {
		m.logger.Info("No bucket configured, skipping upload")

		return nil
	}

	f, err := os.Open(run.ArchivePath)
	if err != nil {
		return err
	}

	defer f.Close()

	key := m.config.RemotePrefix + filepath.Base(run.ArchivePath)
	if err = m.store.Upload(ctx, key, f); err != nil {
		return err
	}

	run.RemoteKey = key
	m.logger.Info("Archive uploaded", "key", key)

	return nil
}

func (m *Manager) retention(ctx context.Context, run *Run) error {
	removed, err := PruneLocal(m.config.Dir, m.config.KeepLocal)
	run.PrunedLocal = removed

	for _, name := range removed {
		m.logger.Info("Removed old local archive", "name", name)

		if m.db != nil {
			if dbErr := m.db.RemoveBackup(strings.TrimSuffix(name, ArchiveExtension)); dbErr != nil {
				m.logger.Warn("Could not remove backup record", "name", name, "err", dbErr)
			}
		}
	}

	if err != nil {
		return err
	}

	if m.store == nil {
		return nil
	}

	keys, err := PruneRemote(ctx, m.store, m.config.RemotePrefix, m.config.RemoteRetention, m.now())
	run.PrunedRemote = keys

	for _, key := range keys {
		m.logger.Info("Removed expired remote archive", "key", key)
	}

	return err
}

func (m *Manager) report(run *Run) error {
	run.ReportPath = filepath.Join(m.config.Dir, run.Name+ReportExtension)

	if err := os.WriteFile(run.ReportPath, []byte(run.Summary(m.now())), 0o640); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}

	m.record(run, nil)

	return nil
}

func (m *Manager) record(run *Run, err error) {
	if m.db == nil {
		return
	}

	rec := db.Backup{
		Name:      run.Name,
		Path:      run.ArchivePath,
		Size:      run.Size,
		RemoteKey: run.RemoteKey,
		Created:   run.Started,
		Succeeded: err == nil,
	}

	var serr *StageError
	if errors.As(err, &serr) {
		rec.FailedStage = serr.Stage.String()
		rec.Error = serr.Err.Error()
	}

	if dbErr := m.db.SaveBackup(rec); dbErr != nil {
		m.logger.Warn("Could not save backup record", "err", dbErr)
	}
}

func (m *Manager) cleanupWorkDir(run *Run) {
	if err := os.RemoveAll(run.WorkDir); err != nil {
		m.logger.Warn("Could not remove working directory", "dir", run.WorkDir, "err", err)
	}
}

// Summary renders the plaintext report of a finished run
func (r *Run) Summary(finished time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "backup:   %s\n", r.Name)
	fmt.Fprintf(&b, "started:  %s\n", r.Started.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "finished: %s\n", finished.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "archive:  %s (%d bytes)\n", r.ArchivePath, r.Size)

	if r.RemoteKey != "" {
		fmt.Fprintf(&b, "remote:   %s\n", r.RemoteKey)
	} else {
		b.WriteString("remote:   not uploaded\n")
	}

	b.WriteString("sources:\n")

	for _, out := range r.Outcomes {
		fmt.Fprintf(&b, "  %-10s %s\n", out.Source, out.Status)
	}

	fmt.Fprintf(&b, "pruned local:  %d\n", len(r.PrunedLocal))
	fmt.Fprintf(&b, "pruned remote: %d\n", len(r.PrunedRemote))

	return b.String()
}

// Restore is not implemented. It logs a warning and leaves everything untouched.
func (m *Manager) Restore(_ context.Context, name string) error {
	m.logger.Warn("Restore is not implemented, nothing was changed", "archive", name)

	return ErrRestoreNotImplemented
}

// List returns local archives followed by remote archives when a bucket is configured
func (m *Manager) List(ctx context.Context) ([]Archive, error) {
	archives, err := LocalArchives(m.config.Dir)
	if err != nil {
		return nil, err
	}

	if m.store == nil {
		return archives, nil
	}

	remote, err := RemoteArchives(ctx, m.store, m.config.RemotePrefix)
	if err != nil {
		return archives, err
	}

	return append(archives, remote...), nil
}

// History returns the recorded backup runs
func (m *Manager) History() ([]db.Backup, error) {
	if m.db == nil {
		return nil, nil
	}

	return m.db.GetBackups()
}
