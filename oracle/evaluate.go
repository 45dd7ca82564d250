package oracle

import (
	"context"
	"log/slog"
	"time"

	"parquet-oracle/manifest"
	"parquet-oracle/reader"
)

type Outcome string

const (
	OutcomePassed      Outcome = "passed"
	OutcomeMismatch    Outcome = "mismatch"
	OutcomeReadFailure Outcome = "read_failure"
	OutcomeUnavailable Outcome = "unavailable"
)

// ReaderVerdict is one reader's judgement of one file.
type ReaderVerdict struct {
	Reader        string        `json:"reader"`
	File          string        `json:"file"`
	Outcome       Outcome       `json:"outcome"`
	Reason        string        `json:"reason,omitempty"`
	Duration      time.Duration `json:"duration"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
}

// FileVerdict collects the verdicts of every reader for one file.
type FileVerdict struct {
	Path     string          `json:"path"`
	Verdicts []ReaderVerdict `json:"verdicts"`
}

// Passed reports whether every available reader passed. Unavailable readers
// are not counted; a file no reader was available for does not pass.
func (f FileVerdict) Passed() bool {
	counted := 0
	for _, v := range f.Verdicts {
		switch v.Outcome {
		case OutcomeUnavailable:
			continue
		case OutcomePassed:
			counted++
		default:
			return false
		}
	}
	return counted > 0
}

// Readable reports whether at least one available reader opened the file.
func (f FileVerdict) Readable() bool {
	for _, v := range f.Verdicts {
		if v.Outcome == OutcomePassed || v.Outcome == OutcomeMismatch {
			return true
		}
	}
	return false
}

// Discrepancies returns the discrepancies of every verdict.
func (f FileVerdict) Discrepancies() []Discrepancy {
	var out []Discrepancy
	for _, v := range f.Verdicts {
		out = append(out, v.Discrepancies...)
	}
	return out
}

// Evaluator runs every available adapter over a file and compares each
// result against the expectation.
type Evaluator struct {
	registry  *reader.Registry
	tolerance Tolerances
	logger    *slog.Logger
}

func NewEvaluator(registry *reader.Registry, tol Tolerances, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		registry:  registry,
		tolerance: tol,
		logger:    logger.With("component", "oracle"),
	}
}

// Evaluate reads path with every available adapter. Unavailable adapters
// are listed with no discrepancies.
func (e *Evaluator) Evaluate(ctx context.Context, path string, exp manifest.Expectation) FileVerdict {
	fv := FileVerdict{Path: exp.Path}

	for _, a := range e.registry.Available() {
		fv.Verdicts = append(fv.Verdicts, e.evaluateOne(ctx, a, path, exp))
	}
	for _, s := range e.registry.Unavailable() {
		reason := ""
		if s.Err != nil {
			reason = s.Err.Error()
		}
		fv.Verdicts = append(fv.Verdicts, ReaderVerdict{
			Reader:  s.Name,
			File:    exp.Path,
			Outcome: OutcomeUnavailable,
			Reason:  reason,
		})
	}
	return fv
}

func (e *Evaluator) evaluateOne(ctx context.Context, a reader.Adapter, path string, exp manifest.Expectation) ReaderVerdict {
	start := time.Now()
	res, err := a.Read(ctx, path)
	v := ReaderVerdict{Reader: a.Name(), File: exp.Path, Duration: time.Since(start)}

	if err != nil {
		e.logger.Warn("reader failed", "reader", a.Name(), "file", exp.Path, "error", err)
		v.Outcome = OutcomeReadFailure
		v.Reason = err.Error()
		v.Discrepancies = []Discrepancy{{
			Reader:   a.Name(),
			File:     exp.Path,
			Column:   "file",
			Kind:     KindReadFailure,
			Row:      -1,
			Expected: "readable file",
			Actual:   err.Error(),
		}}
		return v
	}

	v.Discrepancies = Compare(exp, res, e.tolerance)
	if len(v.Discrepancies) > 0 {
		v.Outcome = OutcomeMismatch
	} else {
		v.Outcome = OutcomePassed
	}
	e.logger.Debug("reader verdict", "reader", a.Name(), "file", exp.Path,
		"outcome", v.Outcome, "discrepancies", len(v.Discrepancies), "duration", v.Duration)
	return v
}
