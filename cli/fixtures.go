package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"parquet-oracle/dataset"
	"parquet-oracle/fixtures"
	"parquet-oracle/oracle"
	"parquet-oracle/producer"
	"parquet-oracle/reader"
	"parquet-oracle/report"
)

func newFixturesCmd(g *globals) *cobra.Command {
	var (
		dir       string
		rows      int
		seed      int64
		patterns  []string
		codecs    []string
		encodings []string
		producers []string
	)

	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Writes reference Parquet files with every producer and a manifest.json index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := fixtures.Options{
				Dir:       dir,
				Rows:      rows,
				Seed:      seed,
				Patterns:  patterns,
				Codecs:    codecs,
				Encodings: encodings,
			}
			for _, name := range producers {
				p, err := producer.New(name)
				if err != nil {
					return err
				}
				opts.Producers = append(opts.Producers, p)
			}

			idx, err := fixtures.Generate(cmd.Context(), opts, g.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(g.stdout, "wrote %d fixtures to %s\n", len(idx.Files), filepath.Join(dir, fixtures.IndexFile))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "output-dir", "o", "fixtures", "directory to write fixtures into")
	cmd.Flags().IntVarP(&rows, "rows", "n", 1000, "rows per table")
	cmd.Flags().Int64Var(&seed, "seed", 42, "generator seed")
	cmd.Flags().StringSliceVar(&patterns, "patterns", []string{"reference", "comprehensive", "types"}, "data patterns, from "+fmt.Sprint(dataset.Patterns()))
	cmd.Flags().StringSliceVar(&codecs, "codecs", []string{"uncompressed", "snappy", "gzip", "lz4_raw", "zstd", "brotli"}, "compression codecs")
	cmd.Flags().StringSliceVar(&encodings, "encodings", nil, "encodings (default: each library's own)")
	cmd.Flags().StringSliceVar(&producers, "producers", producer.Names(), "producers")
	return cmd
}

func newSmokeCmd(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "smoke manifest.json",
		Short: "Checks every fixture in an index with every available reader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			registry, err := reader.NewBuiltinRegistry(g.logger, g.cfg.Readers.Enabled, g.cfg.Readers.SampleSize)
			if err != nil {
				return err
			}
			defer registry.Close()
			registry.Probe(ctx)

			eval := oracle.NewEvaluator(registry, tolerances(g), g.logger)
			rep, err := fixtures.Smoke(ctx, args[0], eval, g.cfg.Readers.SampleSize, g.logger)
			if err != nil {
				return err
			}
			if format == "" {
				format = g.cfg.Output.Format
			}
			if err := report.WriteSmoke(g.stdout, format, rep); err != nil {
				return err
			}
			if !rep.Passed() {
				return exitCode(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "report format, text or json")
	return cmd
}

func tolerances(g *globals) oracle.Tolerances {
	return oracle.Tolerances{
		Float32:    g.cfg.Tolerance.Float32,
		Float64:    g.cfg.Tolerance.Float64,
		Float32Sum: g.cfg.Tolerance.Float32Sum,
		Float64Sum: g.cfg.Tolerance.Float64Sum,
	}
}
