// Package candidate runs the writer under test as an external process and
// turns its stdout into a validated manifest.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"parquet-oracle/manifest"
	"parquet-oracle/storage"
)

// Environment variables describing the cell to the candidate.
const (
	EnvCodec        = "ORACLE_CODEC"
	EnvEncoding     = "ORACLE_ENCODING"
	EnvPattern      = "ORACLE_PATTERN"
	EnvRows         = "ORACLE_ROWS"
	EnvSeed         = "ORACLE_SEED"
	EnvDataset      = "ORACLE_DATASET"
	EnvRowGroupSize = "ORACLE_ROW_GROUP_SIZE"
)

// outputLimit caps how much of each output stream is kept in memory.
const outputLimit = 64 << 20

// Output modes: what the candidate's output argument names.
const (
	OutputFile = "file"
	OutputDir  = "dir"
)

type Config struct {
	Binary string
	// Args go before the output path on the command line.
	Args    []string
	Build   []string
	Timeout time.Duration

	// Output is OutputFile (the default) or OutputDir. In OutputDir mode
	// the directory is created before the candidate runs and the manifest
	// must list the files written into it.
	Output string
}

// Bridge invokes the candidate binary, building it first when needed.
type Bridge struct {
	cfg    Config
	logger *slog.Logger

	once     sync.Once
	buildErr error
	built    bool
}

func NewBridge(cfg Config, logger *slog.Logger) *Bridge {
	return &Bridge{
		cfg:    cfg,
		logger: logger.With("component", "candidate"),
	}
}

// Build makes sure the binary exists, running the build command at most
// once per Bridge. Later calls return the first result.
func (b *Bridge) Build(ctx context.Context) error {
	b.once.Do(func() {
		b.buildErr = b.build(ctx)
	})
	return b.buildErr
}

func (b *Bridge) build(ctx context.Context) error {
	if _, err := os.Stat(b.cfg.Binary); err == nil {
		return nil
	}
	if len(b.cfg.Build) == 0 {
		return &BuildError{Command: []string{b.cfg.Binary}, Err: fmt.Errorf("binary not found and no build command: %w", os.ErrNotExist)}
	}

	b.logger.Info("building candidate", "command", b.cfg.Build)
	start := time.Now()

	cmd := exec.CommandContext(ctx, b.cfg.Build[0], b.cfg.Build[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &BuildError{Command: b.cfg.Build, Output: out, Err: err}
	}
	if _, err := os.Stat(b.cfg.Binary); err != nil {
		return &BuildError{Command: b.cfg.Build, Output: out, Err: fmt.Errorf("build did not produce %s: %w", b.cfg.Binary, err)}
	}

	b.built = true
	b.logger.Info("candidate built", "binary", b.cfg.Binary, "duration", time.Since(start))
	return nil
}

// Cleanup removes the binary when this Bridge built it.
func (b *Bridge) Cleanup() error {
	if !b.built {
		return nil
	}
	if err := os.Remove(b.cfg.Binary); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing built candidate: %w", err)
	}
	b.built = false
	return nil
}

type Request struct {
	// OutputPath is passed as the last argument. Relative file paths in the
	// manifest resolve against it when it is a directory, or against its
	// parent otherwise.
	OutputPath string
	Env        map[string]string
}

type Response struct {
	ID       string
	Manifest *manifest.Manifest
	// Files pairs each expectation with the resolved path to read.
	Files    []File
	Stderr   string
	Duration time.Duration
}

type File struct {
	Path        string
	Expectation manifest.Expectation
}

// Invoke runs the candidate once and validates what it printed.
func (b *Bridge) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := b.Build(ctx); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := b.logger.With("invocation", id, "output", req.OutputPath)

	if b.cfg.Output == OutputDir {
		if err := os.MkdirAll(req.OutputPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	runCtx := ctx
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	stdout, stderr := storage.NewBuffer(outputLimit), storage.NewBuffer(outputLimit)
	args := append(slices.Clone(b.cfg.Args), req.OutputPath)
	cmd := exec.CommandContext(runCtx, b.cfg.Binary, args...)
	cmd.Env = append(os.Environ(), envList(req.Env)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		// the whole run was cancelled, not just this process
		if ctx.Err() != nil {
			return nil, fmt.Errorf("invoking candidate: %w", ctx.Err())
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("candidate timed out", "timeout", b.cfg.Timeout)
			return nil, &InvocationError{Reason: ReasonTimeout, ExitCode: -1, Stderr: stderr.String(), Err: fmt.Errorf("killed after %s", b.cfg.Timeout)}
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		logger.Warn("candidate failed", "exit_code", code, "error", err)
		return nil, &InvocationError{Reason: ReasonExitStatus, ExitCode: code, Stderr: stderr.String(), Err: err}
	}

	if stdout.Truncated() {
		return nil, &InvocationError{Reason: ReasonMalformedManifest, Stderr: stderr.String(), Err: fmt.Errorf("manifest larger than %d bytes", outputLimit)}
	}
	m, err := manifest.Parse(stdout.Bytes())
	if err != nil {
		reason := ReasonMalformedManifest
		if errors.Is(err, manifest.ErrInvalid) {
			reason = ReasonInvalidManifest
		}
		return nil, &InvocationError{Reason: reason, Stderr: stderr.String(), Err: err}
	}
	if b.cfg.Output == OutputDir && len(m.Files) == 0 {
		return nil, &InvocationError{Reason: ReasonInvalidManifest, Stderr: stderr.String(), Err: fmt.Errorf("%w: directory output needs a files list", manifest.ErrInvalid)}
	}

	resp := &Response{
		ID:       id,
		Manifest: m,
		Stderr:   stderr.String(),
		Duration: elapsed,
	}
	base := req.OutputPath
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		base = filepath.Dir(base)
	}
	for _, exp := range m.Expectations(req.OutputPath) {
		path := exp.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		resp.Files = append(resp.Files, File{Path: path, Expectation: exp})
	}

	logger.Info("candidate finished", "duration", elapsed, "files", len(resp.Files), "rows", m.NumRows)
	return resp, nil
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// CellEnv builds the environment describing one matrix cell.
func CellEnv(pattern, codec, encoding string, rows int, seed int64, datasetPath string, rowGroupSize int64) map[string]string {
	env := map[string]string{
		EnvPattern:  pattern,
		EnvCodec:    codec,
		EnvEncoding: encoding,
		EnvRows:     strconv.Itoa(rows),
		EnvSeed:     strconv.FormatInt(seed, 10),
		EnvDataset:  datasetPath,
	}
	if rowGroupSize > 0 {
		env[EnvRowGroupSize] = strconv.FormatInt(rowGroupSize, 10)
	}
	return env
}
