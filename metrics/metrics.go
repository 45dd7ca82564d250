// Package metrics counts what a verification run did and exports it in the
// Prometheus text format, typically for a node-exporter textfile collector.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"parquet-oracle/candidate"
	"parquet-oracle/oracle"
)

// Cell outcomes.
const (
	CellPassed           = "passed"
	CellFailed           = "failed"
	CellInvocationFailed = "invocation_failed"
)

// Invocation statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the counters of one run. A nil *Metrics records nothing.
type Metrics struct {
	// CellsTotal counts matrix cells by outcome.
	// Labels: outcome (passed, failed, invocation_failed)
	CellsTotal *prometheus.CounterVec

	// FilesTotal counts files checked, by whether they passed.
	// Labels: passed (true, false)
	FilesTotal *prometheus.CounterVec

	// VerdictsTotal counts reader verdicts.
	// Labels: reader, outcome
	VerdictsTotal *prometheus.CounterVec

	// DiscrepanciesTotal counts discrepancies.
	// Labels: reader, kind
	DiscrepanciesTotal *prometheus.CounterVec

	// ReadDuration tracks how long each reader took per file.
	// Labels: reader
	ReadDuration *prometheus.HistogramVec

	// CandidateDuration tracks candidate invocations.
	// Labels: status (success, failure), reason
	CandidateDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.gatherer = reg
	return m
}

// NewWithRegistry creates metrics registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CellsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parquet_oracle",
				Name:      "cells_total",
				Help:      "Matrix cells run, by outcome.",
			},
			[]string{"outcome"},
		),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parquet_oracle",
				Name:      "files_total",
				Help:      "Parquet files checked, by whether every available reader passed.",
			},
			[]string{"passed"},
		),
		VerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parquet_oracle",
				Name:      "verdicts_total",
				Help:      "Reader verdicts, by reader and outcome.",
			},
			[]string{"reader", "outcome"},
		),
		DiscrepanciesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parquet_oracle",
				Name:      "discrepancies_total",
				Help:      "Discrepancies found, by reader and kind.",
			},
			[]string{"reader", "kind"},
		),
		ReadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "parquet_oracle",
				Name:      "read_duration_seconds",
				Help:      "Time a reader took to read and summarize one file.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"reader"},
		),
		CandidateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "parquet_oracle",
				Name:      "candidate_duration_seconds",
				Help:      "Candidate writer invocation time.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"status", "reason"},
		),
	}

	reg.MustRegister(
		m.CellsTotal,
		m.FilesTotal,
		m.VerdictsTotal,
		m.DiscrepanciesTotal,
		m.ReadDuration,
		m.CandidateDuration,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// RecordCell counts one matrix cell.
func (m *Metrics) RecordCell(outcome string) {
	if m == nil {
		return
	}
	m.CellsTotal.WithLabelValues(outcome).Inc()
}

// RecordInvocation records one candidate invocation. err is the error
// returned by the bridge, nil on success.
func (m *Metrics) RecordInvocation(d time.Duration, err error) {
	if m == nil {
		return
	}
	status, reason := StatusSuccess, ""
	if err != nil {
		status, reason = StatusFailure, "error"
		var invErr *candidate.InvocationError
		var buildErr *candidate.BuildError
		switch {
		case errors.As(err, &invErr):
			reason = invErr.Reason.String()
		case errors.As(err, &buildErr):
			reason = "build"
		}
	}
	m.CandidateDuration.WithLabelValues(status, reason).Observe(d.Seconds())
}

// RecordFile records the verdicts of every reader on one file.
func (m *Metrics) RecordFile(fv oracle.FileVerdict) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(fmt.Sprint(fv.Passed())).Inc()
	for _, v := range fv.Verdicts {
		m.VerdictsTotal.WithLabelValues(v.Reader, string(v.Outcome)).Inc()
		if v.Outcome != oracle.OutcomeUnavailable {
			m.ReadDuration.WithLabelValues(v.Reader).Observe(v.Duration.Seconds())
		}
		for _, d := range v.Discrepancies {
			m.DiscrepanciesTotal.WithLabelValues(v.Reader, string(d.Kind)).Inc()
		}
	}
}

// WriteTextfile writes every gathered metric to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if m.gatherer == nil {
		return fmt.Errorf("writing metrics: registry cannot be gathered")
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
