package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in memory storage.ObjectStore
type memStore struct {
	mu         sync.Mutex
	objects    map[string]storage.Object
	deleted    []string
	uploadErrs []error
	uploads    int
	now        time.Time
}

func newMemStore(now time.Time) *memStore {
	return &memStore{objects: map[string]storage.Object{}, now: now}
}

func (s *memStore) Upload(_ context.Context, key string, body io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads++

	if len(s.uploadErrs) > 0 {
		err := s.uploadErrs[0]
		s.uploadErrs = s.uploadErrs[1:]

		if err != nil {
			return err
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.objects[key] = storage.Object{Key: key, Size: int64(len(data)), LastModified: s.now}

	return nil
}

func (s *memStore) List(_ context.Context, prefix string) ([]storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []storage.Object

	for k, o := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, o)
		}
	}

	return out, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	s.deleted = append(s.deleted, key)

	return nil
}

func (s *memStore) put(key string, modified time.Time) {
	s.objects[key] = storage.Object{Key: key, Size: 1, LastModified: modified}
}

func touchArchives(t *testing.T, dir string, start time.Time, n int) []string {
	t.Helper()

	var names []string

	for i := 0; i < n; i++ {
		name := ArchiveName(start.Add(time.Duration(i) * 24 * time.Hour))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("archive"), 0o600))
		names = append(names, name)
	}

	return names
}

func TestParseArchiveTime(t *testing.T) {
	ts := time.Date(2026, 10, 19, 3, 4, 5, 0, time.UTC)

	got, ok := ParseArchiveTime("backups/" + ArchiveName(ts))
	require.True(t, ok)
	assert.Equal(t, ts, got)
	assert.Equal(t, "cpaas-backup-20261019-030405.tar.gz", ArchiveName(ts))

	for _, name := range []string{"notes.txt", "cpaas-backup-.tar.gz", "cpaas-backup-20261019.tar.gz", "cpaas-backup-20261019-030405.zip"} {
		_, ok = ParseArchiveTime(name)
		assert.False(t, ok, name)
	}
}

func TestPruneLocal_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	names := touchArchives(t, dir, time.Date(2026, 10, 1, 3, 0, 0, 0, time.UTC), 10)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.tar.gz"), nil, 0o600))

	oldestReport := filepath.Join(dir, strings.TrimSuffix(names[0], ArchiveExtension)+ReportExtension)
	require.NoError(t, os.WriteFile(oldestReport, []byte("report"), 0o600))

	removed, err := PruneLocal(dir, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, names[:3], removed)

	left, err := LocalArchives(dir)
	require.NoError(t, err)
	require.Len(t, left, 7)
	assert.Equal(t, names[9], left[0].Name)
	assert.Equal(t, names[3], left[6].Name)

	assert.FileExists(t, filepath.Join(dir, "unrelated.tar.gz"))
	assert.NoFileExists(t, oldestReport)
}

func TestPruneLocal_FewerThanKeep(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, time.Date(2026, 10, 1, 3, 0, 0, 0, time.UTC), 3)

	removed, err := PruneLocal(dir, 7)
	require.NoError(t, err)
	assert.Empty(t, removed)

	removed, err = PruneLocal(filepath.Join(dir, "missing"), 7)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPruneRemote_AgeBoundary(t *testing.T) {
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	store := newMemStore(now)

	store.put("backups/"+ArchiveName(now.Add(-29*day)), now.Add(-29*day))
	store.put("backups/"+ArchiveName(now.Add(-30*day)), now.Add(-30*day))
	store.put("backups/"+ArchiveName(now.Add(-30*day-time.Second)), now.Add(-30*day-time.Second))
	store.put("backups/"+ArchiveName(now.Add(-45*day)), now.Add(-45*day))
	store.put("backups/manual-dump.sql", now.Add(-90*day))

	removed, err := PruneRemote(context.Background(), store, "backups/", 30*day, now)
	require.NoError(t, err)

	sort.Strings(removed)
	assert.Equal(t, []string{
		"backups/" + ArchiveName(now.Add(-45*day)),
		"backups/" + ArchiveName(now.Add(-30*day-time.Second)),
	}, removed)

	assert.Contains(t, store.objects, "backups/"+ArchiveName(now.Add(-30*day)))
	assert.Contains(t, store.objects, "backups/"+ArchiveName(now.Add(-29*day)))
	assert.Contains(t, store.objects, "backups/manual-dump.sql")
}

type failingList struct{ memStore }

func (f *failingList) List(context.Context, string) ([]storage.Object, error) {
	return nil, errors.New("access denied")
}

func TestPruneRemote_ListError(t *testing.T) {
	_, err := PruneRemote(context.Background(), &failingList{}, "", time.Hour, time.Now())
	assert.EqualError(t, err, "access denied")
}
