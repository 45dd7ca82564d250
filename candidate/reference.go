package candidate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"parquet-oracle/dataset"
	"parquet-oracle/manifest"
	"parquet-oracle/producer"
)

// SampleSize is how many values the reference candidate reports at each
// end of a column.
const SampleSize = 5

// RunReference is the built-in candidate. It honours the wire contract:
// the table comes from ORACLE_DATASET (or is generated from ORACLE_PATTERN,
// ORACLE_ROWS and ORACLE_SEED), Parquet goes to output and the manifest to
// stdout. A comma separated ORACLE_CODEC treats output as a directory and
// writes one file per codec.
func RunReference(ctx context.Context, output string, getenv func(string) string, stdout io.Writer) error {
	t, err := loadTable(getenv)
	if err != nil {
		return err
	}

	codecs := strings.Split(getenv(EnvCodec), ",")
	if codecs[0] == "" {
		codecs = []string{"snappy"}
	}
	opts := producer.Options{Encoding: getenv(EnvEncoding)}
	if s := getenv(EnvRowGroupSize); s != "" {
		if opts.RowGroupSize, err = strconv.ParseInt(s, 10, 64); err != nil || opts.RowGroupSize < 0 {
			return fmt.Errorf("parsing %s %q: invalid row group size", EnvRowGroupSize, s)
		}
	}

	m := manifest.FromTable(t, SampleSize)
	w := producer.NewArrow()

	for _, codec := range codecs {
		path := output
		if len(codecs) > 1 {
			if err := os.MkdirAll(output, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			path = filepath.Join(output, codec+".parquet")
		}

		opts.Codec = strings.TrimSpace(codec)
		if err := w.Write(ctx, path, t, opts); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}

		f := manifest.File{Path: path, Compression: opts.Codec, Encoding: opts.Encoding}
		if groups := rowGroups(t.NumRows(), opts.RowGroupSize); groups > 0 {
			f.RowGroups = &groups
		}
		m.Files = append(m.Files, f)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	_, err = fmt.Fprintf(stdout, "%s\n", data)
	return err
}

// rowGroups is the row group count the arrow producer writes; zero when it
// is not predictable.
func rowGroups(rows int, size int64) int {
	if rows == 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return int((int64(rows) + size - 1) / size)
}

func loadTable(getenv func(string) string) (*dataset.Table, error) {
	if path := getenv(EnvDataset); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening dataset: %w", err)
		}
		defer f.Close()
		t, err := dataset.ReadJSONLines(f)
		if err != nil {
			return nil, fmt.Errorf("reading dataset: %w", err)
		}
		return t, nil
	}

	spec := dataset.PatternSpec{Name: getenv(EnvPattern)}
	if spec.Name == "" {
		spec.Name = "reference"
	}
	rows, seed := 1000, int64(0)
	var err error
	if s := getenv(EnvRows); s != "" {
		if rows, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", EnvRows, err)
		}
	}
	if s := getenv(EnvSeed); s != "" {
		if seed, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", EnvSeed, err)
		}
	}
	return dataset.Generate(seed, rows, spec)
}
