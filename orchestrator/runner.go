// Package orchestrator drives the candidate writer through the
// pattern x codec x encoding matrix and collects every reader's verdict.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"parquet-oracle/candidate"
	"parquet-oracle/config"
	"parquet-oracle/dataset"
	"parquet-oracle/metrics"
	"parquet-oracle/oracle"
	"parquet-oracle/reader"
	"parquet-oracle/storage"
)

// Runner runs one verification. It is not safe for concurrent use.
type Runner struct {
	cfg       *config.Config
	bridge    *candidate.Bridge
	registry  *reader.Registry
	eval      *oracle.Evaluator
	metrics   *metrics.Metrics
	artifacts storage.Storage
	logger    *slog.Logger
}

func NewRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	if cfg.Candidate.Binary == "" {
		return nil, fmt.Errorf("creating runner: no candidate binary configured")
	}

	registry, err := reader.NewBuiltinRegistry(logger, cfg.Readers.Enabled, cfg.Readers.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("creating readers: %w", err)
	}

	artifacts, err := storage.Open(ctx, storage.Options{
		Dir:      cfg.Artifacts.Dir,
		Bucket:   cfg.Artifacts.S3.Bucket,
		Prefix:   cfg.Artifacts.S3.Prefix,
		Region:   cfg.Artifacts.S3.Region,
		Endpoint: cfg.Artifacts.S3.Endpoint,
	})
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("opening artifact storage: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Textfile != "" {
		m = metrics.New()
	}

	bridge := candidate.NewBridge(candidate.Config{
		Binary:  cfg.Candidate.Binary,
		Args:    cfg.Candidate.Args,
		Build:   cfg.Candidate.Build,
		Timeout: cfg.Candidate.Timeout,
		Output:  cfg.Candidate.Output,
	}, logger)

	tol := oracle.Tolerances{
		Float32:    cfg.Tolerance.Float32,
		Float64:    cfg.Tolerance.Float64,
		Float32Sum: cfg.Tolerance.Float32Sum,
		Float64Sum: cfg.Tolerance.Float64Sum,
	}

	return &Runner{
		cfg:       cfg,
		bridge:    bridge,
		registry:  registry,
		eval:      oracle.NewEvaluator(registry, tol, logger),
		metrics:   m,
		artifacts: artifacts,
		logger:    logger.With("component", "orchestrator"),
	}, nil
}

// Artifacts returns the configured artifact storage, or nil.
func (r *Runner) Artifacts() storage.Storage { return r.artifacts }

// Close releases the readers.
func (r *Runner) Close() error {
	return r.registry.Close()
}

type cell struct {
	pattern  string
	codec    string
	encoding string
}

func (c cell) name() string {
	if c.encoding == "" {
		return c.pattern + "_" + c.codec
	}
	return c.pattern + "_" + c.codec + "_" + c.encoding
}

func (r *Runner) cells() []cell {
	encodings := r.cfg.Matrix.Encodings
	if len(encodings) == 0 {
		encodings = []string{""}
	}
	var out []cell
	for _, p := range r.cfg.Matrix.Patterns {
		for _, c := range r.cfg.Matrix.Codecs {
			for _, e := range encodings {
				out = append(out, cell{pattern: p, codec: c, encoding: e})
			}
		}
	}
	return out
}

// Run executes every cell in order. The returned Summary is never nil; a
// non-nil error means the run ended early (failed build, cancellation) and
// is also recorded in Summary.Error. A binary the run built is removed
// before Run returns, and so are the run files unless output.keep is set.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Candidate: r.cfg.Candidate.Binary,
	}
	logger := r.logger.With("run", sum.RunID)

	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	err := r.run(ctx, sum, logger)
	sum.Duration = time.Since(sum.StartedAt)
	if err != nil {
		sum.Error = err.Error()
		var buildErr *candidate.BuildError
		if errors.As(err, &buildErr) {
			sum.BuildOutput = string(buildErr.Output)
		}
		logger.Error("run failed", "error", err)
	}

	if werr := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); werr != nil {
		logger.Warn("writing metrics failed", "error", werr)
	}
	logger.Info("run finished", "cells", len(sum.Cells), "exit_code", sum.ExitCode(), "duration", sum.Duration)
	return sum, err
}

func (r *Runner) run(ctx context.Context, sum *Summary, logger *slog.Logger) error {
	root, cleanupRoot, err := r.workDir(sum.RunID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.bridge.Cleanup(); cerr != nil {
			logger.Warn("removing candidate failed", "error", cerr)
		}
		if r.cfg.Output.Keep {
			logger.Info("keeping run files", "dir", root)
			return
		}
		if cerr := cleanupRoot(); cerr != nil {
			logger.Warn("removing run directory failed", "dir", root, "error", cerr)
		}
	}()

	r.registry.Probe(ctx)
	for _, s := range r.registry.Statuses() {
		rs := ReaderStatus{Name: s.Name, Available: s.Err == nil}
		if s.Err != nil {
			rs.Reason = s.Err.Error()
		}
		sum.Readers = append(sum.Readers, rs)
	}
	if len(sum.AvailableReaders()) == 0 {
		logger.Error("no reader available")
	}

	if err := r.bridge.Build(ctx); err != nil {
		return err
	}

	cells := r.cells()
	for i, c := range cells {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("running cell %s: %w", c.name(), err)
		}

		report, err := r.runCell(ctx, sum.RunID, root, c)
		sum.Cells = append(sum.Cells, report)
		if err != nil {
			return err
		}

		switch {
		case report.Failure != nil:
			r.metrics.RecordCell(metrics.CellInvocationFailed)
		case report.Passed():
			r.metrics.RecordCell(metrics.CellPassed)
		default:
			r.metrics.RecordCell(metrics.CellFailed)
		}

		if report.Failure != nil && report.Failure.Reason == candidate.ReasonTimeout.String() && r.cfg.Candidate.AbortOnTimeout {
			sum.Aborted = fmt.Sprintf("candidate timed out in cell %s, %d of %d cells not run", c.name(), len(cells)-i-1, len(cells))
			logger.Warn("aborting run", "reason", sum.Aborted)
			return nil
		}
	}
	return nil
}

// workDir returns the directory the run writes into and a function removing
// what the run created.
func (r *Runner) workDir(runID string) (string, func() error, error) {
	if r.cfg.Output.Dir == "" {
		dir, err := os.MkdirTemp("", "parquet-oracle-")
		if err != nil {
			return "", nil, fmt.Errorf("creating work directory: %w", err)
		}
		return dir, func() error { return os.RemoveAll(dir) }, nil
	}

	dir := filepath.Join(r.cfg.Output.Dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating work directory: %w", err)
	}
	return dir, func() error { return os.RemoveAll(dir) }, nil
}

func (r *Runner) runCell(ctx context.Context, runID, root string, c cell) (report CellReport, err error) {
	start := time.Now()
	logger := r.logger.With("cell", c.name())
	m := r.cfg.Matrix

	report = CellReport{
		Name:     c.name(),
		Pattern:  c.pattern,
		Codec:    c.codec,
		Encoding: c.encoding,
		Rows:     m.Rows,
	}
	defer func() { report.Duration = time.Since(start) }()

	t, err := dataset.Generate(m.Seed, m.Rows, dataset.PatternSpec{
		Name:      c.pattern,
		NullRate:  m.NullRate,
		NullEvery: m.NullEvery,
	})
	if err != nil {
		return report, err
	}
	report.Columns = len(t.Columns)

	dir := filepath.Join(root, c.name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report, fmt.Errorf("creating cell directory: %w", err)
	}
	defer func() {
		if r.cfg.Output.Keep {
			if report.Retained == "" {
				report.Retained = dir
			}
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("removing cell directory failed", "error", err)
		}
	}()

	dsPath := filepath.Join(dir, "dataset.jsonl")
	if err := writeDataset(dsPath, t); err != nil {
		return report, err
	}

	out := filepath.Join(dir, "output.parquet")
	if r.cfg.Candidate.Output == candidate.OutputDir {
		out = filepath.Join(dir, "output")
	}
	resp, err := r.bridge.Invoke(ctx, candidate.Request{
		OutputPath: out,
		Env:        candidate.CellEnv(c.pattern, c.codec, c.encoding, m.Rows, m.Seed, dsPath, m.RowGroupSize),
	})
	r.metrics.RecordInvocation(time.Since(start), err)
	if err != nil {
		var invErr *candidate.InvocationError
		if !errors.As(err, &invErr) {
			return report, err
		}
		report.Failure = newFailure(err, invErr)
		logger.Warn("candidate failed", "reason", report.Failure.Reason)
		r.retain(ctx, runID, dir, &report, logger)
		return report, nil
	}
	report.InvocationID = resp.ID

	if data, err := json.MarshalIndent(resp.Manifest, "", "  "); err == nil {
		if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644); err != nil {
			logger.Warn("saving manifest failed", "error", err)
		}
	}

	for _, f := range resp.Files {
		fv := r.eval.Evaluate(ctx, f.Path, f.Expectation)
		r.metrics.RecordFile(fv)
		report.Files = append(report.Files, fv)
		logger.Info("file checked", "file", f.Expectation.Path, "passed", fv.Passed(), "discrepancies", len(fv.Discrepancies()))
	}

	if !report.Passed() {
		r.retain(ctx, runID, dir, &report, logger)
	}
	return report, nil
}

// retain uploads a failed cell's files to artifact storage.
func (r *Runner) retain(ctx context.Context, runID, dir string, report *CellReport, logger *slog.Logger) {
	if r.artifacts == nil {
		return
	}
	prefix := filepath.ToSlash(filepath.Join(runID, report.Name))
	keys, err := storage.Upload(ctx, r.artifacts, dir, prefix)
	if err != nil {
		logger.Warn("uploading cell artifacts failed", "error", err)
		return
	}
	report.Retained = prefix
	logger.Info("cell artifacts uploaded", "prefix", prefix, "files", len(keys))
}

func writeDataset(path string, t *dataset.Table) error {
	var buf bytes.Buffer
	if err := dataset.WriteJSONLines(&buf, t); err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	return nil
}
