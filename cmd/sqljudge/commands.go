package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"sqljudge/internal/challenge"
	"sqljudge/internal/config"
	"sqljudge/internal/db"
	"sqljudge/internal/fixture"
	"sqljudge/internal/judge"
	"sqljudge/internal/metrics"
	"sqljudge/internal/report"
	"sqljudge/internal/uploader"
	"sqljudge/internal/util"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type runOptions struct {
	challengePath string
	queryPath     string
	querySQL      string
	withSample    bool
	reportDir     string
	metricsFile   string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a candidate query against a challenge's test cases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logCloser, err := setup(root)
			if err != nil {
				return err
			}
			defer util.CloseWithErr(logCloser, "log file")
			if opts.reportDir != "" {
				cfg.Report.Enabled = true
				cfg.Report.OutputDir = opts.reportDir
			}
			if opts.metricsFile != "" {
				cfg.Metrics.TextfilePath = opts.metricsFile
			}
			return runChallenge(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.challengePath, "challenge", "", "challenge document (.json or .yaml)")
	cmd.Flags().StringVar(&opts.queryPath, "query", "", "file holding the candidate query")
	cmd.Flags().StringVar(&opts.querySQL, "sql", "", "candidate query text (instead of --query)")
	cmd.Flags().BoolVar(&opts.withSample, "sample", false, "also judge the challenge's sample data")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "write a run report under this directory")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile")
	_ = cmd.MarkFlagRequired("challenge")
	return cmd
}

func readQuery(opts *runOptions) (string, error) {
	if opts.querySQL != "" {
		return opts.querySQL, nil
	}
	if opts.queryPath == "" {
		return "", errors.New("one of --query or --sql is required")
	}
	data, err := os.ReadFile(opts.queryPath)
	if err != nil {
		return "", errors.Wrap(err, "read query")
	}
	return strings.TrimSpace(string(data)), nil
}

func runChallenge(ctx context.Context, cfg config.Config, opts *runOptions) error {
	c, err := challenge.Load(opts.challengePath)
	if err != nil {
		return err
	}
	query, err := readQuery(opts)
	if err != nil {
		return err
	}
	fixtures := c.TestCases
	if opts.withSample {
		fixtures = append([]fixture.Fixture{c.Sample()}, fixtures...)
	}

	opener, err := db.NewOpener(cfg.Store)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(opener, "store opener")
	rec := metrics.New()
	engine := judge.NewFromConfig(cfg, opener, rec)

	inputRows := 0
	for _, fx := range fixtures {
		inputRows += fx.RowCount()
	}
	util.Infof("judging %q: %d fixture(s), %d input row(s) on %s with %d worker(s)",
		c.Title, len(fixtures), inputRows, cfg.Store.Driver, cfg.Workers)
	rep := engine.Evaluate(ctx, query, c.Schema, fixtures)
	printReport(rep)
	summary := judge.Summarize(rep, len(fixtures))
	if summary.Status == judge.StatusSolved {
		util.Highlightf("%s: %d/%d passed in %.3fs", summary.Status, summary.PassedCount, summary.TotalCount, summary.ExecutionTime)
	} else {
		util.Errorf("%s: %d/%d passed in %.3fs", summary.Status, summary.PassedCount, summary.TotalCount, summary.ExecutionTime)
	}

	if cfg.Report.Enabled {
		if err := writeRun(ctx, cfg, c, query, fixtures, opener, rep); err != nil {
			util.Warnf("report write failed: %v", err)
		}
	}
	if err := rec.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		util.Warnf("metrics textfile write failed path=%s err=%v", cfg.Metrics.TextfilePath, err)
	}
	if summary.Status != judge.StatusSolved {
		return errNotSolved
	}
	return nil
}

func printReport(rep judge.Report) {
	if rep.BatchError != "" {
		util.Errorf("batch error: %s", rep.BatchError)
		return
	}
	for _, v := range rep.Verdicts {
		switch {
		case v.Passed:
			util.Infof("PASS %s", v.FixtureName)
		case v.Error != "":
			util.Warnf("FAIL %s: %s", v.FixtureName, v.Error)
		default:
			util.Warnf("FAIL %s: expected %d row(s), got %d", v.FixtureName, len(v.Expected), len(v.Actual))
			for _, row := range v.Expected {
				util.Detailf("  expected %s", row)
			}
			for _, row := range v.Actual {
				util.Detailf("  actual   %s", row)
			}
		}
	}
}

func writeRun(ctx context.Context, cfg config.Config, c challenge.Challenge, query string, fixtures []fixture.Fixture, opener db.Opener, rep judge.Report) error {
	reporter := report.New(cfg.Report.OutputDir, cfg.Report.UseUUIDPath)
	run, err := reporter.NewRun()
	if err != nil {
		return err
	}
	if err := reporter.WriteText(run, "query.sql", query+"\n"); err != nil {
		return err
	}
	if err := reporter.WriteSchema(run, c.Schema, opener.Dialect()); err != nil {
		return err
	}
	if err := reporter.WriteFixtureData(run, fixtures); err != nil {
		return err
	}
	if err := reporter.WriteReport(run, rep); err != nil {
		return err
	}
	summary := report.NewSummary(run, c.Title, cfg.Store.Driver, rep, len(fixtures))
	if err := reporter.WriteSummary(run, summary); err != nil {
		return err
	}
	if cfg.Report.Archive {
		name, codec, err := reporter.WriteArchive(run)
		if err != nil {
			util.Warnf("run archive failed dir=%s err=%v", run.Dir, err)
		} else {
			summary.ArchiveName, summary.ArchiveCodec = name, codec
		}
	}
	if cfg.Storage.CloudEnabled() {
		up, err := uploader.New(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		location, err := up.UploadDir(ctx, run.Dir)
		if err != nil {
			util.Warnf("run upload failed dir=%s err=%v", run.Dir, err)
		} else {
			summary.UploadLocation = location
		}
	}
	util.Infof("run report written to %s", run.Dir)
	return reporter.WriteSummary(run, summary)
}

type challengeOptions struct {
	challengePath string
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	opts := &challengeOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Validate a challenge and check its solution passes every test case",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logCloser, err := setup(root)
			if err != nil {
				return err
			}
			defer util.CloseWithErr(logCloser, "log file")
			c, err := challenge.Load(opts.challengePath)
			if err != nil {
				return err
			}
			if err := c.Validate(cfg.MinFixtures); err != nil {
				return errors.Wrap(err, "validation error")
			}
			opener, err := db.NewOpener(cfg.Store)
			if err != nil {
				return err
			}
			defer util.CloseWithErr(opener, "store opener")
			engine := judge.NewFromConfig(cfg, opener, nil)
			failures, err := challenge.VerifySolution(cmd.Context(), engine, c)
			for _, f := range failures {
				util.Warnf("%s", f)
			}
			if err != nil {
				return err
			}
			util.Highlightf("challenge %q verified: %d test case(s)", c.Title, len(c.TestCases))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.challengePath, "challenge", "", "challenge document (.json or .yaml)")
	_ = cmd.MarkFlagRequired("challenge")
	return cmd
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	opts := &challengeOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a challenge document's structure without running it",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logCloser, err := setup(root)
			if err != nil {
				return err
			}
			defer util.CloseWithErr(logCloser, "log file")
			c, err := challenge.Load(opts.challengePath)
			if err != nil {
				return err
			}
			if err := c.Validate(cfg.MinFixtures); err != nil {
				return errors.Wrap(err, "validation error")
			}
			util.Infof("challenge %q is valid: %d test case(s)", c.Title, len(c.TestCases))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.challengePath, "challenge", "", "challenge document (.json or .yaml)")
	_ = cmd.MarkFlagRequired("challenge")
	return cmd
}

type indexOptions struct {
	input    string
	output   string
	maxBytes int
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	opts := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Collect run summaries under a report directory into index.json",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logCloser, err := setup(root)
			if err != nil {
				return err
			}
			defer util.CloseWithErr(logCloser, "log file")
			input := opts.input
			if input == "" {
				input = cfg.Report.OutputDir
			}
			index, err := report.BuildIndex(input, opts.maxBytes)
			if err != nil {
				return errors.Wrap(err, "build index")
			}
			if err := report.WriteIndex(opts.output, index); err != nil {
				return errors.Wrap(err, "write index")
			}
			fmt.Printf("indexed %d run(s) into %s\n", len(index.Runs), opts.output)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "report directory (defaults to report.output_dir)")
	cmd.Flags().StringVar(&opts.output, "output", "site", "output directory for index.json")
	cmd.Flags().IntVar(&opts.maxBytes, "max-bytes", 64*1024, "max bytes to inline per run file")
	return cmd
}
