// Package fixtures writes Parquet files with every reference producer and
// checks that every reference reader agrees on them.
package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"parquet-oracle/dataset"
	"parquet-oracle/producer"
)

// IndexFile is the name of the index written next to the fixtures.
const IndexFile = "manifest.json"

// Index describes a generated fixture set.
type Index struct {
	RunID       string            `json:"run_id"`
	GeneratedAt int64             `json:"generated_at_ms"`
	Libraries   []string          `json:"libraries"`
	Versions    map[string]string `json:"versions"`
	Files       []Entry           `json:"files"`
}

// Entry is one fixture file. Path is relative to the index directory.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Producer    string `json:"producer"`
	Compression string `json:"compression"`
	Encoding    string `json:"encoding,omitempty"`

	// Pattern, Rows and Seed regenerate the table the file was written from.
	Pattern string `json:"pattern"`
	Rows    int    `json:"rows"`
	Seed    int64  `json:"seed"`

	// Columns is the column order in the file.
	Columns       []string    `json:"columns"`
	FileSizeBytes int64       `json:"file_size_bytes"`
	Metrics       FileMetrics `json:"metrics"`
}

// FileMetrics are per column counts of the source table.
type FileMetrics struct {
	ValueCounts     map[string]int64 `json:"value_counts"`
	NullValueCounts map[string]int64 `json:"null_value_counts"`
}

type Options struct {
	Dir       string
	Rows      int
	Seed      int64
	Patterns  []string
	Codecs    []string
	Encodings []string
	Producers []producer.Producer
}

// Generate writes every producer x pattern x codec x encoding combination
// the producers support into opts.Dir and writes the index. Unsupported
// combinations are skipped.
func Generate(ctx context.Context, opts Options, logger *slog.Logger) (*Index, error) {
	logger = logger.With("component", "fixtures")
	if len(opts.Encodings) == 0 {
		opts.Encodings = []string{""}
	}

	idx := &Index{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UnixNano() / int64(time.Millisecond),
		Versions:    map[string]string{},
	}
	for _, p := range opts.Producers {
		idx.Libraries = append(idx.Libraries, p.Name())
		idx.Versions[p.Name()] = p.Version()
	}

	for _, pattern := range opts.Patterns {
		t, err := dataset.Generate(opts.Seed, opts.Rows, dataset.PatternSpec{Name: pattern})
		if err != nil {
			return nil, err
		}
		metrics := collectMetrics(t)

		for _, p := range opts.Producers {
			dir := filepath.Join(opts.Dir, p.Name())
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating directories: %w", err)
			}

			for _, codec := range opts.Codecs {
				for _, enc := range opts.Encodings {
					if err := ctx.Err(); err != nil {
						return nil, err
					}

					name := fmt.Sprintf("%s_%s_%s", p.Name(), pattern, codec)
					if enc != "" {
						name += "_" + enc
					}
					rel := filepath.Join(p.Name(), name+".parquet")
					full := filepath.Join(opts.Dir, rel)

					err := p.Write(ctx, full, t, producer.Options{Codec: codec, Encoding: enc})
					if errors.Is(err, producer.ErrUnsupported) {
						logger.Debug("skipping fixture", "name", name, "reason", err)
						os.Remove(full)
						continue
					}
					if err != nil {
						return nil, fmt.Errorf("writing fixture %s: %w", name, err)
					}

					info, err := os.Stat(full)
					if err != nil {
						return nil, fmt.Errorf("getting file size: %w", err)
					}
					idx.Files = append(idx.Files, Entry{
						Name:          name,
						Path:          filepath.ToSlash(rel),
						Producer:      p.Name(),
						Compression:   codec,
						Encoding:      enc,
						Pattern:       pattern,
						Rows:          opts.Rows,
						Seed:          opts.Seed,
						Columns:       producer.ColumnOrder(p, t),
						FileSizeBytes: info.Size(),
						Metrics:       metrics,
					})
					logger.Debug("fixture written", "name", name, "bytes", info.Size())
				}
			}
		}
	}

	if err := writeIndex(idx, filepath.Join(opts.Dir, IndexFile)); err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}
	logger.Info("fixtures generated", "files", len(idx.Files), "dir", opts.Dir)
	return idx, nil
}

func collectMetrics(t *dataset.Table) FileMetrics {
	m := FileMetrics{
		ValueCounts:     make(map[string]int64, len(t.Columns)),
		NullValueCounts: make(map[string]int64, len(t.Columns)),
	}
	for _, c := range t.Columns {
		nulls := int64(c.NullCount())
		m.NullValueCounts[c.Name] = nulls
		m.ValueCounts[c.Name] = int64(len(c.Values)) - nulls
	}
	return m
}

func writeIndex(idx *Index, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(idx); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return file.Close()
}

// LoadIndex reads an index written by Generate.
func LoadIndex(path string) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer file.Close()

	var idx Index
	if err := json.NewDecoder(file).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	return &idx, nil
}
