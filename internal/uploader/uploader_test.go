package uploader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"sqljudge/internal/config"
)

type memoryStore struct {
	objects map[string]string
	fail    string
}

func (m *memoryStore) put(_ context.Context, key string, body io.Reader, size int64, contentType string) error {
	if key == m.fail {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = contentType + " " + string(data)
	return nil
}

func writeRunDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "run_0001_abc")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, body := range map[string]string{"summary.json": "{}", "run.tar.zst": "zz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func TestNewWithoutBackends(t *testing.T) {
	up, err := New(context.Background(), config.StorageConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if up.Enabled() {
		t.Fatalf("expected noop uploader")
	}
	loc, err := up.UploadDir(context.Background(), t.TempDir())
	if err != nil || loc != "" {
		t.Fatalf("noop upload returned %q, %v", loc, err)
	}
}

func TestUploadDirPutsRegularFiles(t *testing.T) {
	dir := writeRunDir(t)
	store := &memoryStore{objects: map[string]string{}}
	up := &dirUploader{scheme: "s3", bucket: "judge-runs", prefix: "/nightly/", store: store}
	if !up.Enabled() {
		t.Fatalf("expected enabled uploader")
	}
	loc, err := up.UploadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if loc != "s3://judge-runs/nightly/run_0001_abc/" {
		t.Fatalf("unexpected location %q", loc)
	}
	keys := make([]string, 0, len(store.objects))
	for k := range store.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if strings.Join(keys, ",") != "nightly/run_0001_abc/run.tar.zst,nightly/run_0001_abc/summary.json" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if store.objects["nightly/run_0001_abc/summary.json"] != "application/json {}" {
		t.Fatalf("unexpected object %q", store.objects["nightly/run_0001_abc/summary.json"])
	}
	if store.objects["nightly/run_0001_abc/run.tar.zst"] != "application/zstd zz" {
		t.Fatalf("unexpected object %q", store.objects["nightly/run_0001_abc/run.tar.zst"])
	}
}

func TestUploadDirReportsFailedKey(t *testing.T) {
	dir := writeRunDir(t)
	store := &memoryStore{objects: map[string]string{}, fail: "run_0001_abc/summary.json"}
	up := &dirUploader{scheme: "gs", bucket: "b", store: store}
	_, err := up.UploadDir(context.Background(), dir)
	if err == nil || !strings.Contains(err.Error(), "upload run_0001_abc/summary.json: bucket unavailable") {
		t.Fatalf("expected wrapped upload error, got %v", err)
	}
}

func TestObjectPrefix(t *testing.T) {
	cases := []struct {
		prefix string
		dir    string
		want   string
	}{
		{"", "/tmp/reports/run_0001_x", "run_0001_x/"},
		{"/judge/", "/tmp/reports/abc", "judge/abc/"},
		{"a/b", "abc", "a/b/abc/"},
	}
	for _, c := range cases {
		if got := objectPrefix(c.prefix, c.dir); got != c.want {
			t.Fatalf("objectPrefix(%q, %q) = %q, want %q", c.prefix, c.dir, got, c.want)
		}
	}
}

func TestContentType(t *testing.T) {
	for path, want := range map[string]string{
		"schema.sql": "text/plain; charset=utf-8",
		"data.tsv":   "text/plain; charset=utf-8",
		"blob.bin":   "application/octet-stream",
	} {
		if got := contentType(path); got != want {
			t.Fatalf("contentType(%q) = %q, want %q", path, got, want)
		}
	}
}
