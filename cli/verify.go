package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"parquet-oracle/orchestrator"
	"parquet-oracle/report"
)

func newVerifyCmd(g *globals) *cobra.Command {
	var (
		outputDir string
		rows      int
		keep      bool
		binary    string
		self      bool
		format    string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Runs the candidate writer through the pattern x codec matrix",
		Long: `Runs the candidate writer once per pattern, codec and encoding, reads
every file it produced with each available reference reader and compares
what they see with the manifest the candidate printed.

Exit status is 0 when every available reader agreed with every manifest, 1 on
discrepancies or candidate failures and 2 when nothing could be checked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			flags := cmd.Flags()
			if flags.Changed("output-dir") {
				cfg.Output.Dir = outputDir
			}
			if flags.Changed("rows") {
				cfg.Matrix.Rows = rows
			}
			if flags.Changed("keep") {
				cfg.Output.Keep = keep
			}
			if flags.Changed("format") {
				cfg.Output.Format = format
			}
			if binary != "" {
				cfg.Candidate.Binary = binary
				cfg.Candidate.Args = nil
			}
			if self {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("locating own binary: %w", err)
				}
				cfg.Candidate.Binary = exe
				cfg.Candidate.Args = []string{"candidate"}
				cfg.Candidate.Build = nil
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			runner, err := orchestrator.NewRunner(ctx, cfg, g.logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			sum, runErr := runner.Run(ctx)
			if err := report.Write(g.stdout, cfg.Output.Format, sum); err != nil {
				return err
			}
			if err := saveReport(cmd, g, runner, sum); err != nil {
				g.logger.Warn("saving report failed", "error", err)
			}
			if runErr != nil {
				g.logger.Error("verification ended early", "error", runErr)
			}
			if code := sum.ExitCode(); code != 0 {
				return exitCode(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for run files (default: a temporary directory)")
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "rows per generated table")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep run files")
	cmd.Flags().StringVar(&binary, "candidate", "", "candidate writer binary")
	cmd.Flags().BoolVar(&self, "self", false, "verify the built-in reference candidate")
	cmd.Flags().StringVar(&format, "format", "", "report format, text or json")
	cmd.MarkFlagsMutuallyExclusive("candidate", "self")
	return cmd
}

// saveReport writes report.json next to the run files and to artifact
// storage, when either is configured.
func saveReport(cmd *cobra.Command, g *globals, runner *orchestrator.Runner, sum *orchestrator.Summary) error {
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, sum); err != nil {
		return err
	}

	if dir := g.cfg.Output.Dir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		path := filepath.Join(dir, "report-"+sum.RunID+".json")
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		g.logger.Info("report written", "path", path)
	}

	if st := runner.Artifacts(); st != nil {
		key := sum.RunID + "/report.json"
		if err := st.Write(cmd.Context(), key, bytes.NewReader(buf.Bytes())); err != nil {
			return fmt.Errorf("uploading report: %w", err)
		}
		g.logger.Info("report uploaded", "key", key)
	}
	return nil
}
