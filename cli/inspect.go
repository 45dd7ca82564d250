package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parquet-oracle/candidate"
	"parquet-oracle/producer"
	"parquet-oracle/reader"
	"parquet-oracle/report"
)

func newInspectCmd(g *globals) *cobra.Command {
	var readers []string

	cmd := &cobra.Command{
		Use:   "inspect file.parquet",
		Short: "Prints what every reader sees in a Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(readers) == 0 {
				readers = g.cfg.Readers.Enabled
			}
			registry, err := reader.NewBuiltinRegistry(g.logger, readers, g.cfg.Readers.SampleSize)
			if err != nil {
				return err
			}
			defer registry.Close()
			registry.Probe(cmd.Context())

			failed := 0
			for _, a := range registry.Available() {
				res, err := a.Read(cmd.Context(), args[0])
				if err != nil {
					failed++
					fmt.Fprintf(g.stdout, "%s: %v\n\n", a.Name(), err)
					continue
				}
				if err := report.WriteResult(g.stdout, res); err != nil {
					return err
				}
			}
			for _, s := range registry.Unavailable() {
				fmt.Fprintf(g.stdout, "%s: %v\n", s.Name, s.Err)
			}
			if failed > 0 {
				return exitCode(1)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&readers, "readers", nil, "readers to use (default: readers.enabled)")
	return cmd
}

func newCandidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "candidate output",
		Short: "Built-in reference candidate: writes Parquet with arrow-go and prints its manifest",
		Long: `Implements the candidate contract on top of the arrow-go writer. The table
comes from ORACLE_DATASET, or is generated from ORACLE_PATTERN, ORACLE_ROWS and
ORACLE_SEED. ORACLE_CODEC, ORACLE_ENCODING and ORACLE_ROW_GROUP_SIZE select the
write options; a comma separated ORACLE_CODEC writes one file per codec into
the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return candidate.RunReference(cmd.Context(), args[0], os.Getenv, g.stdout)
		},
	}
}

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version and the Parquet libraries built in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(g.stdout, "parquet-oracle %s\n", Version)
			for _, name := range producer.Names() {
				p, err := producer.New(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(g.stdout, "  %-10s %s\n", name, p.Version())
			}
			return nil
		},
	}
}
