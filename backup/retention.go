package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/storage"
)

// Archive is a backup archive found locally or in the bucket
type Archive struct {
	Name     string
	Path     string // local path or object key
	Remote   bool
	Size     int64
	Created  time.Time
	Modified time.Time
}

// LocalArchives lists archives in dir, newest first by embedded timestamp
func LocalArchives(dir string) ([]Archive, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not read backup directory: %w", err)
	}

	var archives []Archive

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		created, ok := ParseArchiveTime(e.Name())
		if !ok {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, err
		}

		archives = append(archives, Archive{
			Name:     e.Name(),
			Path:     filepath.Join(dir, e.Name()),
			Size:     info.Size(),
			Created:  created,
			Modified: info.ModTime(),
		})
	}

	sortNewestFirst(archives)

	return archives, nil
}

// RemoteArchives lists archive objects under prefix, newest first
func RemoteArchives(ctx context.Context, store storage.ObjectStore, prefix string) ([]Archive, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var archives []Archive

	for _, obj := range objects {
		created, ok := ParseArchiveTime(obj.Key)
		if !ok {
			continue
		}

		archives = append(archives, Archive{
			Name:     filepath.Base(obj.Key),
			Path:     obj.Key,
			Remote:   true,
			Size:     obj.Size,
			Created:  created,
			Modified: obj.LastModified,
		})
	}

	sortNewestFirst(archives)

	return archives, nil
}

func sortNewestFirst(archives []Archive) {
	sort.SliceStable(archives, func(i, j int) bool {
		if archives[i].Created.Equal(archives[j].Created) {
			return archives[i].Name > archives[j].Name
		}

		return archives[i].Created.After(archives[j].Created)
	})
}

// PruneLocal deletes all but the keep newest archives in dir together with their reports.
// It returns the names of the deleted archives.
func PruneLocal(dir string, keep int) ([]string, error) {
	archives, err := LocalArchives(dir)
	if err != nil {
		return nil, err
	}

	if keep < 0 {
		keep = 0
	}

	if len(archives) <= keep {
		return nil, nil
	}

	var removed []string

	for _, a := range archives[keep:] {
		if err = os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("could not remove %s: %w", a.Name, err)
		}

		report := strings.TrimSuffix(a.Path, ArchiveExtension) + ReportExtension
		if err = os.Remove(report); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("could not remove %s: %w", report, err)
		}

		removed = append(removed, a.Name)
	}

	return removed, nil
}

// PruneRemote deletes archive objects under prefix whose age is strictly greater than maxAge.
// It returns the deleted keys.
func PruneRemote(ctx context.Context, store storage.ObjectStore, prefix string, maxAge time.Duration, now time.Time) ([]string, error) {
	archives, err := RemoteArchives(ctx, store, prefix)
	if err != nil {
		return nil, err
	}

	var removed []string

	for _, a := range archives {
		if now.Sub(a.Modified) <= maxAge {
			continue
		}

		if err = store.Delete(ctx, a.Path); err != nil {
			return removed, err
		}

		removed = append(removed, a.Path)
	}

	return removed, nil
}
