package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) IDB {
	t.Helper()

	d, err := NewDB(hclog.NewNullLogger(), filepath.Join(t.TempDir(), "state", "state.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = d.Close() })

	return d
}

func TestCreateFreshDB_Idempotent(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.CreateFreshDB())
	require.NoError(t, d.CreateFreshDB())
}

func TestDeployments(t *testing.T) {
	d := newTestDB(t)

	_, err := d.GetLastDeployment()
	require.ErrorIs(t, err, ErrNoDeployments)

	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	require.NoError(t, d.SaveDeployment(Deployment{
		ID:        "first",
		Action:    "deploy",
		Started:   start,
		Finished:  start.Add(time.Minute),
		Succeeded: true,
	}))
	require.NoError(t, d.SaveDeployment(Deployment{
		ID:       "second",
		Action:   "update",
		Started:  start.Add(time.Hour),
		Finished: start.Add(time.Hour + time.Minute),
		Unready:  []string{"kamailio", "freeswitch"},
		Error:    "readiness timeout",
	}))

	last, err := d.GetLastDeployment()
	require.NoError(t, err)
	assert.Equal(t, "second", last.ID)
	assert.Equal(t, "update", last.Action)
	assert.False(t, last.Succeeded)
	assert.Equal(t, []string{"kamailio", "freeswitch"}, last.Unready)
	assert.Equal(t, start.Add(time.Hour), last.Started)
	assert.Equal(t, "readiness timeout", last.Error)
}

func TestBackups(t *testing.T) {
	d := newTestDB(t)
	created := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)

	require.NoError(t, d.SaveBackup(Backup{Name: "old", Path: "/b/old.tar.gz", Created: created, Succeeded: true, Size: 10}))
	require.NoError(t, d.SaveBackup(Backup{Name: "new", Path: "/b/new.tar.gz", Created: created.Add(24 * time.Hour), FailedStage: "uploading", Error: "denied"}))

	// replacing by name keeps one row
	require.NoError(t, d.SaveBackup(Backup{Name: "new", Path: "/b/new.tar.gz", Created: created.Add(24 * time.Hour), Succeeded: true, RemoteKey: "backups/new.tar.gz"}))

	backups, err := d.GetBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "new", backups[0].Name)
	assert.True(t, backups[0].Succeeded)
	assert.Equal(t, "backups/new.tar.gz", backups[0].RemoteKey)
	assert.Equal(t, "old", backups[1].Name)
	assert.Equal(t, int64(10), backups[1].Size)

	require.NoError(t, d.RemoveBackup("old"))

	backups, err = d.GetBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "new", backups[0].Name)
}
