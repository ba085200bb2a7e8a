package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket is a minimal path style S3 endpoint: PUT, DELETE and ListObjectsV2
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/backups-bucket/")

	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = string(body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		f.deleted = append(f.deleted, key)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")

		var contents strings.Builder
		for k, v := range f.objects {
			if !strings.HasPrefix(k, prefix) {
				continue
			}

			fmt.Fprintf(&contents, "<Contents><Key>%s</Key><LastModified>2026-09-01T10:00:00.000Z</LastModified><Size>%d</Size></Contents>", k, len(v))
		}

		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>backups-bucket</Name><Prefix>%s</Prefix><IsTruncated>false</IsTruncated>%s</ListBucketResult>`,
			prefix, contents.String())
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestS3_UploadListDelete(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	store, err := NewS3(context.Background(), Config{
		Bucket:          "backups-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        srv.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "backups/cpaas-backup-20261019-030000.tar.gz", strings.NewReader("archive")))
	assert.Equal(t, "archive", bucket.objects["backups/cpaas-backup-20261019-030000.tar.gz"])

	objects, err := store.List(ctx, "backups/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "backups/cpaas-backup-20261019-030000.tar.gz", objects[0].Key)
	assert.Equal(t, int64(7), objects[0].Size)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), objects[0].LastModified.UTC())

	require.NoError(t, store.Delete(ctx, "backups/cpaas-backup-20261019-030000.tar.gz"))
	assert.Empty(t, bucket.objects)
	assert.Equal(t, []string{"backups/cpaas-backup-20261019-030000.tar.gz"}, bucket.deleted)
}
