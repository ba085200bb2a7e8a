package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ArchivePrefix    = "cpaas-backup-"
	ArchiveExtension = ".tar.gz"
	ReportExtension  = ".report.txt"
	timestampLayout  = "20060102-150405"
)

// RunName is the archive base name for a run started at t
func RunName(t time.Time) string {
	return ArchivePrefix + t.UTC().Format(timestampLayout)
}

// ArchiveName is the archive file name for a run started at t
func ArchiveName(t time.Time) string {
	return RunName(t) + ArchiveExtension
}

// ParseArchiveTime extracts the embedded timestamp of an archive name.
// Directory components are ignored so object keys can be passed as is.
func ParseArchiveTime(name string) (time.Time, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, ArchivePrefix) || !strings.HasSuffix(base, ArchiveExtension) {
		return time.Time{}, false
	}

	stamp := strings.TrimSuffix(strings.TrimPrefix(base, ArchivePrefix), ArchiveExtension)

	t, err := time.ParseInLocation(timestampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// createArchive writes srcDir as a gzipped tar to dst, entries rooted at the directory name
func createArchive(srcDir, dst string) error {
	tmp := dst + ".part"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("could not create archive: %w", err)
	}

	if err = writeArchive(srcDir, f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)

		return err
	}

	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)

		return err
	}

	return os.Rename(tmp, dst)
}

func writeArchive(srcDir string, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	root := filepath.Base(srcDir)

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		hdr.Name = filepath.ToSlash(filepath.Join(root, rel))
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err = tw.WriteHeader(hdr); err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}

		defer src.Close()

		_, err = io.Copy(tw, src)

		return err
	})
	if err != nil {
		return fmt.Errorf("could not write archive: %w", err)
	}

	if err = tw.Close(); err != nil {
		return err
	}

	return gz.Close()
}
