package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sqljudge/internal/util"
)

// FileContent holds inlined run file content.
type FileContent struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// RunEntry is one run in an index.
type RunEntry struct {
	Summary
	Files map[string]FileContent `json:"files"`
}

// Index lists runs found under a report directory, newest first.
type Index struct {
	GeneratedAt string     `json:"generated_at"`
	Source      string     `json:"source"`
	Runs        []RunEntry `json:"runs"`
}

// inlinedFiles are copied into the index, capped at maxBytes each.
var inlinedFiles = []string{"query.sql", "schema.sql", "data.tsv", "report.json"}

// BuildIndex scans root for run directories holding a summary.json.
// Directories whose summary cannot be read are skipped.
func BuildIndex(root string, maxBytes int) (Index, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return Index{}, err
	}
	runs := make([]RunEntry, 0, len(dirs))
	for _, dirEntry := range dirs {
		if !dirEntry.IsDir() {
			continue
		}
		dir := filepath.Join(root, dirEntry.Name())
		entry, err := readRunFromDir(dir, maxBytes)
		if err != nil {
			util.Detailf("skip run dir=%s err=%v", dir, err)
			continue
		}
		if strings.TrimSpace(entry.RunID) == "" {
			entry.RunID = dirEntry.Name()
		}
		entry.RunDir = dir
		runs = append(runs, entry)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp > runs[j].Timestamp
	})
	return Index{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Source:      root,
		Runs:        runs,
	}, nil
}

func readRunFromDir(dir string, maxBytes int) (RunEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		return RunEntry{}, err
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return RunEntry{}, err
	}
	files := map[string]FileContent{}
	for _, name := range inlinedFiles {
		content, truncated, err := readFileLimited(filepath.Join(dir, name), maxBytes)
		if err != nil {
			continue
		}
		files[name] = FileContent{Name: name, Content: content, Truncated: truncated}
	}
	if _, err := os.Stat(filepath.Join(dir, RunArchiveName)); err == nil {
		files[RunArchiveName] = FileContent{Name: RunArchiveName, Content: "(binary)", Truncated: true}
	}
	return RunEntry{Summary: summary, Files: files}, nil
}

func readFileLimited(path string, maxBytes int) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer util.CloseWithErr(f, "report input")
	data, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		return "", false, err
	}
	truncated := len(data) > maxBytes
	if truncated {
		data = data[:maxBytes]
	}
	return string(data), truncated, nil
}

// WriteIndex writes index.json into output.
func WriteIndex(output string, index Index) error {
	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(output, "index.json"))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "index output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(index)
}
