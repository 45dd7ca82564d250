// Package reader wraps independent Parquet implementations behind one
// Adapter interface. Each adapter normalizes what its library reports into
// the dataset type vocabulary and a Result.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrUnavailable marks an adapter that cannot run in this environment.
// Unavailable adapters never count against the writer.
var ErrUnavailable = errors.New("reader unavailable")

type Adapter interface {
	Name() string
	// Probe checks the adapter can run here. An error wrapping
	// ErrUnavailable takes it out of the run.
	Probe(ctx context.Context) error
	Read(ctx context.Context, path string) (*Result, error)
}

// DefaultSampleSize is the number of values kept at each end of a column.
const DefaultSampleSize = 5

// Names lists the built-in adapters in their default order.
func Names() []string {
	return []string{"parquet-go", "arrow", "goparquet", "duckdb"}
}

// New returns the built-in adapter called name.
func New(name string, sampleSize int) (Adapter, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	switch name {
	case "parquet-go":
		return NewParquetGo(sampleSize), nil
	case "arrow":
		return NewArrow(sampleSize), nil
	case "goparquet":
		return NewGoParquet(sampleSize), nil
	case "duckdb":
		return NewDuckDB(sampleSize), nil
	}
	return nil, fmt.Errorf("unknown reader %q", name)
}

// Status is the probe outcome of one adapter.
type Status struct {
	Name string
	Err  error // nil when available
}

// Registry probes each adapter once and hands out the available ones.
type Registry struct {
	adapters []Adapter
	status   map[string]error
	probed   bool
	logger   *slog.Logger
	mu       sync.RWMutex
}

func NewRegistry(logger *slog.Logger, adapters ...Adapter) *Registry {
	return &Registry{
		adapters: adapters,
		status:   make(map[string]error),
		logger:   logger,
	}
}

// NewBuiltinRegistry builds a registry over the named built-in adapters.
func NewBuiltinRegistry(logger *slog.Logger, names []string, sampleSize int) (*Registry, error) {
	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		a, err := New(name, sampleSize)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return NewRegistry(logger, adapters...), nil
}

// Probe runs every adapter's probe. Later calls are no-ops. Any probe error
// makes the adapter unavailable; errors that do not already wrap
// ErrUnavailable are wrapped.
func (r *Registry) Probe(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.probed {
		return
	}
	r.probed = true

	for _, a := range r.adapters {
		err := a.Probe(ctx)
		if err != nil && !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		r.status[a.Name()] = err
		if err != nil {
			r.logger.Warn("reader unavailable", "reader", a.Name(), "reason", err)
		} else {
			r.logger.Debug("reader available", "reader", a.Name())
		}
	}
}

// Available returns the adapters whose probe passed, in registration order.
func (r *Registry) Available() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Adapter
	for _, a := range r.adapters {
		if err, ok := r.status[a.Name()]; ok && err == nil {
			out = append(out, a)
		}
	}
	return out
}

// Statuses returns every adapter's probe outcome in registration order.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.adapters))
	for _, a := range r.adapters {
		err, ok := r.status[a.Name()]
		if !ok {
			err = fmt.Errorf("%w: not probed", ErrUnavailable)
		}
		out = append(out, Status{Name: a.Name(), Err: err})
	}
	return out
}

// Close releases adapters holding resources, such as the DuckDB handle.
func (r *Registry) Close() error {
	var errs []error
	for _, a := range r.adapters {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing reader %s: %w", a.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Unavailable returns the statuses of adapters that failed their probe.
func (r *Registry) Unavailable() []Status {
	var out []Status
	for _, s := range r.Statuses() {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}
