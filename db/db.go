package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	_ "github.com/mattn/go-sqlite3"
)

// IDB stores the history of orchestration runs
type IDB interface {
	CreateFreshDB() error
	SaveDeployment(d Deployment) error
	GetLastDeployment() (Deployment, error)
	SaveBackup(b Backup) error
	GetBackups() ([]Backup, error)
	RemoveBackup(name string) error
	Close() error
}

var ErrNoDeployments = errors.New("no deployments recorded")

// Deployment is a single deploy, restart or update run
type Deployment struct {
	ID        string
	Action    string
	Started   time.Time
	Finished  time.Time
	Succeeded bool
	Unready   []string
	Error     string
}

// Backup is a single backup run
type Backup struct {
	Name        string
	Path        string
	Size        int64
	RemoteKey   string
	Created     time.Time
	Succeeded   bool
	FailedStage string
	Error       string
}

type db struct {
	db  *sql.DB
	log hclog.Logger
}

func NewDB(logger hclog.Logger, location string) (IDB, error) {
	var err error
	dbInstance := &db{
		log: logger.Named("db"),
	}

	if location == "" {
		location = DefaultDBLocation()
	}

	// create database directory
	if err = os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}

	dbInstance.log.Debug("Creating new SQLite instance", "location", location)

	dbInstance.db, err = sql.Open("sqlite3", location)
	if err != nil {
		dbInstance.log.Error("Could not open db connection", "data_source", location, "err", err)

		return nil, err
	}

	dbInstance.log.Debug("SQLite instance created")

	if err = dbInstance.CreateFreshDB(); err != nil {
		_ = dbInstance.db.Close()

		return nil, fmt.Errorf("could not create fresh db: %w", err)
	}

	return dbInstance, nil
}

func (d *db) Close() error {
	if err := d.db.Close(); err != nil {
		return err
	}

	return nil
}

func (d *db) SaveDeployment(dep Deployment) error {
	stmt, err := d.db.Prepare("INSERT INTO deployments(id, action, started, finished, succeeded, unready, error) " +
		"VALUES (?,?,?,?,?,?,?);")
	if err != nil {
		return fmt.Errorf("could not prepare insert statement err=%w", err)
	}

	defer stmt.Close()

	if _, err = stmt.Exec(
		dep.ID,
		dep.Action,
		toUnix(dep.Started),
		toUnix(dep.Finished),
		boolToInt(dep.Succeeded),
		joinNames(dep.Unready),
		dep.Error,
	); err != nil {
		return fmt.Errorf("could not execute insert statement err=%w", err)
	}

	d.log.Debug("Deployment saved", "id", dep.ID, "action", dep.Action)

	return nil
}

func (d *db) GetLastDeployment() (Deployment, error) {
	var (
		dep               Deployment
		started, finished int64
		succeeded         int
		unready           string
	)

	err := d.db.QueryRow("SELECT id, action, started, finished, succeeded, unready, error " +
		"FROM deployments ORDER BY started DESC, rowid DESC LIMIT 1").
		Scan(&dep.ID, &dep.Action, &started, &finished, &succeeded, &unready, &dep.Error)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Deployment{}, ErrNoDeployments
	case err != nil:
		return Deployment{}, fmt.Errorf("could not get last deployment: %w", err)
	}

	dep.Started = fromUnix(started)
	dep.Finished = fromUnix(finished)
	dep.Succeeded = succeeded == 1
	dep.Unready = splitNames(unready)

	return dep, nil
}

// SaveBackup inserts the backup record, replacing an existing record with the same name
func (d *db) SaveBackup(b Backup) error {
	stmt, err := d.db.Prepare("INSERT OR REPLACE INTO backups(name, path, size, remote_key, created, succeeded, failed_stage, error) " +
		"VALUES (?,?,?,?,?,?,?,?);")
	if err != nil {
		return fmt.Errorf("could not prepare insert statement err=%w", err)
	}

	defer stmt.Close()

	if _, err = stmt.Exec(
		b.Name,
		b.Path,
		b.Size,
		b.RemoteKey,
		toUnix(b.Created),
		boolToInt(b.Succeeded),
		b.FailedStage,
		b.Error,
	); err != nil {
		return fmt.Errorf("could not execute insert statement err=%w", err)
	}

	d.log.Debug("Backup saved", "name", b.Name)

	return nil
}

func (d *db) GetBackups() ([]Backup, error) {
	rows, err := d.db.Query("SELECT name, path, size, remote_key, created, succeeded, failed_stage, error " +
		"FROM backups ORDER BY created DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("could not run select query err=%w", err)
	}

	defer rows.Close()

	var backups []Backup

	for rows.Next() {
		var (
			b         Backup
			created   int64
			succeeded int
		)

		if err = rows.Scan(&b.Name, &b.Path, &b.Size, &b.RemoteKey, &created, &succeeded, &b.FailedStage, &b.Error); err != nil {
			return nil, fmt.Errorf("could not scan data into struct err=%w", err)
		}

		b.Created = fromUnix(created)
		b.Succeeded = succeeded == 1
		backups = append(backups, b)
	}

	return backups, rows.Err()
}

func (d *db) RemoveBackup(name string) error {
	stmt, err := d.db.Prepare("DELETE FROM backups WHERE name = ?")
	if err != nil {
		return fmt.Errorf("could not prepare delete statement err=%w", err)
	}

	defer stmt.Close()

	res, err := stmt.Exec(name)
	if err != nil {
		return fmt.Errorf("could not execute delete statement err=%w", err)
	}

	rowsAffected, _ := res.RowsAffected()
	d.log.Debug("Backup record deleted", "name", name, "deleted_rows", rowsAffected)

	return nil
}
