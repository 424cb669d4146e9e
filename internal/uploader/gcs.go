package uploader

import (
	"context"
	"io"
	"strings"

	"sqljudge/internal/config"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsStore writes to a Google Cloud Storage bucket.
type gcsStore struct {
	bucket *storage.BucketHandle
}

func newGCSStore(ctx context.Context, cfg config.GCSConfig) (*gcsStore, error) {
	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &gcsStore{bucket: client.Bucket(cfg.Bucket)}, nil
}

func (s *gcsStore) put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
