package report

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sqljudge/internal/fixture"
	"sqljudge/internal/judge"
	"sqljudge/internal/runinfo"
	"sqljudge/internal/schema"
	"sqljudge/internal/util"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Reporter writes run artifacts to disk.
type Reporter struct {
	OutputDir   string
	UseUUIDPath bool
	runSeq      int
}

// Run describes a report directory.
type Run struct {
	ID  string
	Dir string
}

// Summary captures the persisted metadata for a run.
type Summary struct {
	RunID          string             `json:"run_id"`
	RunDir         string             `json:"run_dir"`
	Challenge      string             `json:"challenge"`
	Status         string             `json:"status"`
	PassedTests    int                `json:"passed_tests"`
	TotalTests     int                `json:"total_tests"`
	ExecutionTime  float64            `json:"execution_time"`
	ErrorMessage   string             `json:"error_message"`
	Store          string             `json:"store"`
	ArchiveName    string             `json:"archive_name"`
	ArchiveCodec   string             `json:"archive_codec"`
	UploadLocation string             `json:"upload_location"`
	Details        map[string]any     `json:"details"`
	CI             *runinfo.BasicInfo `json:"ci,omitempty"`
	Timestamp      string             `json:"timestamp"`
}

// New creates a reporter that writes to outputDir.
func New(outputDir string, useUUIDPath bool) *Reporter {
	return &Reporter{OutputDir: outputDir, UseUUIDPath: useUUIDPath}
}

// NewRun allocates a new run directory.
func (r *Reporter) NewRun() (Run, error) {
	r.runSeq++
	runID := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		runID = v7.String()
	}
	runDir := fmt.Sprintf("run_%04d_%s", r.runSeq, runID)
	if r.UseUUIDPath {
		runDir = runID
	}
	dir := filepath.Join(r.OutputDir, runDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Run{}, err
	}
	_ = os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Judge Run\n\n- Schema: schema.sql\n- Fixture input rows: data.tsv\n- Candidate query: query.sql\n- Verdicts: report.json\n- Status: summary.json\n"), 0o644)
	return Run{ID: runID, Dir: dir}, nil
}

const (
	RunArchiveName  = "run.tar.zst"
	RunArchiveCodec = "zstd"
)

// NewSummary fills a summary from a judged batch. Failed fixture names are
// listed under details.failed_tests in fixture order.
func NewSummary(run Run, title string, store string, report judge.Report, total int) Summary {
	s := judge.Summarize(report, total)
	failed := make([]any, 0)
	for _, v := range report.Verdicts {
		if !v.Passed {
			failed = append(failed, v.FixtureName)
		}
	}
	return Summary{
		RunID:         run.ID,
		RunDir:        run.Dir,
		Challenge:     title,
		Status:        s.Status,
		PassedTests:   s.PassedCount,
		TotalTests:    s.TotalCount,
		ExecutionTime: s.ExecutionTime,
		ErrorMessage:  s.ErrorMessage,
		Store:         store,
		Details:       map[string]any{"failed_tests": failed},
		CI:            runinfo.FromEnv(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// WriteSummary writes summary.json into the run directory.
func (r *Reporter) WriteSummary(run Run, summary Summary) error {
	f, err := os.Create(filepath.Join(run.Dir, "summary.json"))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "summary output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return encodeSummaryStable(enc, summary)
}

// WriteReport writes report.json with every verdict into the run directory.
func (r *Reporter) WriteReport(run Run, report judge.Report) error {
	f, err := os.Create(filepath.Join(run.Dir, "report.json"))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "report output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(report)
}

// WriteSQL writes a SQL file from the provided statements.
func (r *Reporter) WriteSQL(run Run, name string, statements []string) error {
	content := strings.Join(statements, ";\n") + ";\n"
	return r.WriteText(run, name, content)
}

// WriteText writes raw text content into the run directory.
func (r *Reporter) WriteText(run Run, name string, content string) error {
	path := filepath.Join(run.Dir, name)
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// WriteSchema writes schema.sql rendered for dialect.
func (r *Reporter) WriteSchema(run Run, def schema.Definition, dialect schema.Dialect) error {
	return r.WriteSQL(run, "schema.sql", def.CreateStatements(dialect))
}

// WriteFixtureData writes data.tsv: one section per fixture and table, a
// header line of column names, then one tab-separated line per row.
func (r *Reporter) WriteFixtureData(run Run, fixtures []fixture.Fixture) error {
	var b strings.Builder
	for _, fx := range fixtures {
		for _, table := range fx.TableNames() {
			rows := fx.InputData[table]
			b.WriteString(fmt.Sprintf("-- %s / %s\n", fx.Name, table))
			if len(rows) > 0 {
				b.WriteString(strings.Join(rows[0].Columns(), "\t"))
				b.WriteString("\n")
			}
			for _, row := range rows {
				cells := make([]string, 0, len(row))
				for _, c := range row {
					cells = append(cells, c.Value.String())
				}
				b.WriteString(strings.Join(cells, "\t"))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}
	return os.WriteFile(filepath.Join(run.Dir, "data.tsv"), []byte(b.String()), 0o644)
}

// WriteArchive creates a compressed archive of the run directory.
func (r *Reporter) WriteArchive(run Run) (name string, codec string, err error) {
	archivePath := filepath.Join(run.Dir, RunArchiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(zw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(run.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath {
			return nil
		}
		rel, err := filepath.Rel(run.Dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer util.CloseWithErr(src, "archive source")
		_, err = io.Copy(tw, src)
		return err
	})
	if walkErr != nil {
		return "", "", walkErr
	}
	return RunArchiveName, RunArchiveCodec, nil
}

// encodeSummaryStable writes details with sorted keys so summaries diff cleanly.
func encodeSummaryStable(enc *json.Encoder, summary Summary) error {
	type summaryAlias Summary
	alias := summaryAlias(summary)
	rawDetails, err := encodeOrderedValue(alias.Details)
	if err != nil {
		return err
	}
	alias.Details = nil
	payload := struct {
		summaryAlias
		Details json.RawMessage `json:"details"`
	}{
		summaryAlias: alias,
		Details:      rawDetails,
	}
	return enc.Encode(payload)
}

func encodeOrderedValue(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := writeOrderedJSON(&buf, v); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

func writeOrderedJSON(w io.Writer, v any) error {
	switch val := v.(type) {
	case nil:
		_, err := io.WriteString(w, "null")
		return err
	case map[string]any:
		if val == nil {
			_, err := io.WriteString(w, "null")
			return err
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if _, err := io.WriteString(w, "{"); err != nil {
			return err
		}
		for i, k := range keys {
			if i > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if err := writeScalarJSON(w, k); err != nil {
				return err
			}
			if _, err := io.WriteString(w, ":"); err != nil {
				return err
			}
			if err := writeOrderedJSON(w, val[k]); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "}")
		return err
	case []any:
		if _, err := io.WriteString(w, "["); err != nil {
			return err
		}
		for i, item := range val {
			if i > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if err := writeOrderedJSON(w, item); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "]")
		return err
	default:
		return writeScalarJSON(w, v)
	}
}

func writeScalarJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}
