package fixtures

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"parquet-oracle/dataset"
	"parquet-oracle/manifest"
	"parquet-oracle/oracle"
)

// SmokeFile is the verdict of every reader on one fixture.
type SmokeFile struct {
	Entry   Entry              `json:"entry"`
	Verdict oracle.FileVerdict `json:"verdict"`
}

// SmokeReport is the producer x reader compatibility matrix.
type SmokeReport struct {
	Index string      `json:"index"`
	Files []SmokeFile `json:"files"`
}

// Passed reports whether every fixture passed with every available reader.
func (r *SmokeReport) Passed() bool {
	for _, f := range r.Files {
		if !f.Verdict.Passed() {
			return false
		}
	}
	return true
}

// Cell is one producer x reader pair of the matrix.
type Cell struct {
	Producer string
	Reader   string
	Passed   int
	Failed   int
	Skipped  int
}

// Matrix tallies verdicts per producer and reader, in first-seen order.
func (r *SmokeReport) Matrix() []Cell {
	var cells []Cell
	pos := map[[2]string]int{}
	for _, f := range r.Files {
		for _, v := range f.Verdict.Verdicts {
			key := [2]string{f.Entry.Producer, v.Reader}
			i, ok := pos[key]
			if !ok {
				i = len(cells)
				pos[key] = i
				cells = append(cells, Cell{Producer: key[0], Reader: key[1]})
			}
			switch v.Outcome {
			case oracle.OutcomePassed:
				cells[i].Passed++
			case oracle.OutcomeUnavailable:
				cells[i].Skipped++
			default:
				cells[i].Failed++
			}
		}
	}
	return cells
}

// Smoke regenerates the source table of every fixture listed in the index
// and checks each file with every available reader.
func Smoke(ctx context.Context, indexPath string, eval *oracle.Evaluator, sampleSize int, logger *slog.Logger) (*SmokeReport, error) {
	idx, err := LoadIndex(indexPath)
	if err != nil {
		return nil, err
	}
	logger = logger.With("component", "smoke")
	base := filepath.Dir(indexPath)

	report := &SmokeReport{Index: indexPath}
	tables := map[string]*dataset.Table{}

	for _, e := range idx.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := fmt.Sprintf("%s/%d/%d", e.Pattern, e.Rows, e.Seed)
		t, ok := tables[key]
		if !ok {
			if t, err = dataset.Generate(e.Seed, e.Rows, dataset.PatternSpec{Name: e.Pattern}); err != nil {
				return nil, fmt.Errorf("regenerating %s: %w", e.Name, err)
			}
			tables[key] = t
		}

		path := filepath.FromSlash(e.Path)
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}

		exp := manifest.FromTable(t, sampleSize).Expectations(e.Path)[0]
		exp.Compression = e.Compression
		exp.Encoding = e.Encoding
		exp.Columns = reorder(exp.Columns, e.Columns)

		fv := eval.Evaluate(ctx, path, exp)
		logger.Info("fixture checked", "name", e.Name, "passed", fv.Passed())
		report.Files = append(report.Files, SmokeFile{Entry: e, Verdict: fv})
	}
	return report, nil
}

// reorder returns cols in the given name order. Names not in order keep
// their relative position at the end.
func reorder(cols []manifest.Column, order []string) []manifest.Column {
	if len(order) == 0 {
		return cols
	}
	byName := make(map[string]manifest.Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}
	out := make([]manifest.Column, 0, len(cols))
	seen := map[string]bool{}
	for _, name := range order {
		if c, ok := byName[name]; ok {
			out = append(out, c)
			seen[name] = true
		}
	}
	for _, c := range cols {
		if !seen[c.Name] {
			out = append(out, c)
		}
	}
	return out
}
