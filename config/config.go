package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Candidate struct {
		// Binary is the path of the writer under test. When it does not
		// exist and Build is set, Build is run once to produce it.
		Binary         string        `yaml:"binary"`
		Args           []string      `yaml:"args"`
		Build          []string      `yaml:"build"`
		Timeout        time.Duration `yaml:"timeout"`
		AbortOnTimeout bool          `yaml:"abort_on_timeout"`

		// Output is "file" when the candidate's argument names the file to
		// write, or "dir" when it names a directory to write files into.
		Output string `yaml:"output"`
	} `yaml:"candidate"`

	Matrix struct {
		Patterns  []string `yaml:"patterns"`
		Codecs    []string `yaml:"codecs"`
		Encodings []string `yaml:"encodings"`
		Rows      int      `yaml:"rows"`
		Seed      int64    `yaml:"seed"`
		NullRate  float64  `yaml:"null_rate"`
		NullEvery int      `yaml:"null_every"`

		// RowGroupSize is passed to the candidate; zero leaves it unset.
		RowGroupSize int64 `yaml:"row_group_size"`
	} `yaml:"matrix"`

	Readers struct {
		Enabled    []string `yaml:"enabled"`
		SampleSize int      `yaml:"sample_size"`
	} `yaml:"readers"`

	Tolerance struct {
		Float32    float64 `yaml:"float32"`
		Float64    float64 `yaml:"float64"`
		Float32Sum float64 `yaml:"float32_sum"`
		Float64Sum float64 `yaml:"float64_sum"`
	} `yaml:"tolerance"`

	Output struct {
		Dir    string `yaml:"dir"`
		Keep   bool   `yaml:"keep"`
		Format string `yaml:"format"`
	} `yaml:"output"`

	Artifacts struct {
		Dir string `yaml:"dir"`
		S3  struct {
			Bucket   string `yaml:"bucket"`
			Prefix   string `yaml:"prefix"`
			Region   string `yaml:"region"`
			Endpoint string `yaml:"endpoint"`
		} `yaml:"s3"`
	} `yaml:"artifacts"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	RunTimeout time.Duration `yaml:"run_timeout"`
}

// Default returns the configuration used when no file is given. It runs the
// reference pattern through every codec with the built-in readers.
func Default() *Config {
	var cfg Config

	cfg.Candidate.Timeout = 60 * time.Second
	cfg.Candidate.AbortOnTimeout = true
	cfg.Candidate.Output = "file"

	cfg.Matrix.Patterns = []string{"reference", "comprehensive"}
	cfg.Matrix.Codecs = []string{"uncompressed", "snappy", "gzip", "lz4_raw", "zstd"}
	cfg.Matrix.Encodings = []string{"plain"}
	cfg.Matrix.Rows = 1000
	cfg.Matrix.Seed = 42
	cfg.Matrix.NullRate = 0.1

	cfg.Readers.Enabled = []string{"parquet-go", "arrow", "goparquet", "duckdb"}
	cfg.Readers.SampleSize = 5

	cfg.Tolerance.Float32 = 1e-4
	cfg.Tolerance.Float64 = 1e-10
	cfg.Tolerance.Float32Sum = 1e-4
	cfg.Tolerance.Float64Sum = 1e-9

	cfg.Output.Format = "text"

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	cfg.RunTimeout = 30 * time.Minute

	return &cfg
}

// LoadConfig reads a YAML file on top of Default. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var (
	knownCodecs    = map[string]bool{"uncompressed": true, "snappy": true, "gzip": true, "lz4_raw": true, "zstd": true, "brotli": true}
	knownEncodings = map[string]bool{"plain": true, "dictionary": true, "delta": true}
)

// Validate rejects values the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.Matrix.Rows < 0 {
		return fmt.Errorf("matrix.rows must not be negative, got %d", c.Matrix.Rows)
	}
	if c.Matrix.RowGroupSize < 0 {
		return fmt.Errorf("matrix.row_group_size must not be negative, got %d", c.Matrix.RowGroupSize)
	}
	if c.Matrix.NullRate < 0 || c.Matrix.NullRate > 1 {
		return fmt.Errorf("matrix.null_rate must be within [0, 1], got %g", c.Matrix.NullRate)
	}
	if len(c.Matrix.Patterns) == 0 {
		return fmt.Errorf("matrix.patterns must not be empty")
	}
	if len(c.Matrix.Codecs) == 0 {
		return fmt.Errorf("matrix.codecs must not be empty")
	}
	for _, codec := range c.Matrix.Codecs {
		if !knownCodecs[codec] {
			return fmt.Errorf("unknown codec %q", codec)
		}
	}
	for _, enc := range c.Matrix.Encodings {
		if !knownEncodings[enc] {
			return fmt.Errorf("unknown encoding %q", enc)
		}
	}
	if c.Readers.SampleSize <= 0 {
		return fmt.Errorf("readers.sample_size must be positive, got %d", c.Readers.SampleSize)
	}
	if c.Tolerance.Float32 < 0 || c.Tolerance.Float64 < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	if c.Candidate.Timeout <= 0 {
		return fmt.Errorf("candidate.timeout must be positive")
	}
	switch c.Candidate.Output {
	case "file", "dir":
	default:
		return fmt.Errorf("candidate.output must be file or dir, got %q", c.Candidate.Output)
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output.format %q", c.Output.Format)
	}
	return nil
}
