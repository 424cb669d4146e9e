// Package uploader ships run directories to object storage.
package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sqljudge/internal/config"
	"sqljudge/internal/util"

	"github.com/pkg/errors"
)

// Uploader copies the files of a run directory to remote storage and
// returns the remote location.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader is used when no backend is configured.
type NoopUploader struct{}

// Enabled always reports false.
func (NoopUploader) Enabled() bool {
	return false
}

// UploadDir does nothing.
func (NoopUploader) UploadDir(context.Context, string) (string, error) {
	return "", nil
}

// objectStore writes one object into a bucket.
type objectStore interface {
	put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// dirUploader puts every regular file directly under a run directory into
// <bucket>/<prefix>/<run>/.
type dirUploader struct {
	scheme string
	bucket string
	prefix string
	store  objectStore
}

func (u *dirUploader) Enabled() bool {
	return u.store != nil
}

func (u *dirUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	prefix := objectPrefix(u.prefix, dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key := prefix + entry.Name()
		if err := u.putFile(ctx, filepath.Join(dir, entry.Name()), key); err != nil {
			return "", errors.Wrapf(err, "upload %s", key)
		}
		uploaded++
	}
	location := fmt.Sprintf("%s://%s/%s", u.scheme, u.bucket, prefix)
	util.Detailf("uploaded %d file(s) to %s", uploaded, location)
	return location, nil
}

func (u *dirUploader) putFile(ctx context.Context, path, key string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(file, "upload source")
	info, err := file.Stat()
	if err != nil {
		return err
	}
	return u.store.put(ctx, key, file, info.Size(), contentType(path))
}

// New picks the configured backend. S3 wins when both are enabled.
func New(ctx context.Context, storage config.StorageConfig) (Uploader, error) {
	switch {
	case storage.S3.Enabled:
		store, err := newS3Store(ctx, storage.S3)
		if err != nil {
			return nil, errors.Wrap(err, "s3 uploader")
		}
		return &dirUploader{scheme: "s3", bucket: storage.S3.Bucket, prefix: storage.S3.Prefix, store: store}, nil
	case storage.GCS.Enabled:
		store, err := newGCSStore(ctx, storage.GCS)
		if err != nil {
			return nil, errors.Wrap(err, "gcs uploader")
		}
		return &dirUploader{scheme: "gs", bucket: storage.GCS.Bucket, prefix: storage.GCS.Prefix, store: store}, nil
	default:
		return NoopUploader{}, nil
	}
}

// objectPrefix returns "<prefix>/<run>/" with an empty prefix dropped.
func objectPrefix(prefix string, dir string) string {
	p := strings.Trim(prefix, "/")
	base := filepath.Base(dir)
	if p == "" {
		return base + "/"
	}
	return p + "/" + base + "/"
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".json":
		return "application/json"
	case ".sql", ".md", ".tsv":
		return "text/plain; charset=utf-8"
	case ".zst":
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}
