package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

func (d *db) checkIfTableExists(tableName string) (bool, error) {
	stmt, err := d.db.Prepare("SELECT name FROM sqlite_master WHERE type='table' AND name=?")
	if err != nil {
		return false, fmt.Errorf("could not prepare statement err=%w", err)
	}

	defer stmt.Close()

	res, err := stmt.Query(tableName)
	if err != nil {
		return false, fmt.Errorf("could not run query err=%w", err)
	}

	defer res.Close()

	if res.Next() {
		return true, nil
	}

	return false, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func joinNames(names []string) string {
	return strings.Join(names, ",")
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Split(s, ",")
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}

	return time.Unix(sec, 0).UTC()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.Unix()
}

// DefaultDBLocation returns ~/.cpaasctl/state.db, or a local path when the home dir is unknown
func DefaultDBLocation() string {
	logger := hclog.New(hclog.DefaultOptions)
	// get user home dir
	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.Error("Could not get user home directory, setting state.db to local folder", "err", err)

		return filepath.Join(".cpaasctl", "state.db")
	}

	return filepath.Join(homeDir, ".cpaasctl", "state.db")
}
