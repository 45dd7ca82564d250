package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parquet-oracle/oracle"
)

func verdicts(outcomes ...oracle.Outcome) oracle.FileVerdict {
	fv := oracle.FileVerdict{Path: "out.parquet"}
	names := []string{"parquet-go", "arrow", "goparquet", "duckdb"}
	for i, o := range outcomes {
		v := oracle.ReaderVerdict{Reader: names[i], Outcome: o}
		if o == oracle.OutcomeMismatch {
			v.Discrepancies = []oracle.Discrepancy{{Kind: oracle.KindValue}, {Kind: oracle.KindAggregate}}
		}
		fv.Verdicts = append(fv.Verdicts, v)
	}
	return fv
}

func TestExitCode(t *testing.T) {
	readers := []ReaderStatus{{Name: "parquet-go", Available: true}, {Name: "arrow", Available: true}}
	passed := oracle.OutcomePassed

	tests := []struct {
		name string
		sum  Summary
		want int
	}{
		{
			name: "all passed",
			sum:  Summary{Readers: readers, Cells: []CellReport{{Files: []oracle.FileVerdict{verdicts(passed, passed)}}}},
			want: ExitPassed,
		},
		{
			name: "unavailable reader does not count",
			sum:  Summary{Readers: readers, Cells: []CellReport{{Files: []oracle.FileVerdict{verdicts(passed, oracle.OutcomeUnavailable)}}}},
			want: ExitPassed,
		},
		{
			name: "mismatch",
			sum:  Summary{Readers: readers, Cells: []CellReport{{Files: []oracle.FileVerdict{verdicts(passed, oracle.OutcomeMismatch)}}}},
			want: ExitDiscrepancy,
		},
		{
			name: "one reader failed to read",
			sum:  Summary{Readers: readers, Cells: []CellReport{{Files: []oracle.FileVerdict{verdicts(passed, oracle.OutcomeReadFailure)}}}},
			want: ExitDiscrepancy,
		},
		{
			name: "no reader could read",
			sum:  Summary{Readers: readers, Cells: []CellReport{{Files: []oracle.FileVerdict{verdicts(oracle.OutcomeReadFailure, oracle.OutcomeReadFailure)}}}},
			want: ExitTotalFailure,
		},
		{
			name: "candidate failure",
			sum:  Summary{Readers: readers, Cells: []CellReport{{Failure: &Failure{Reason: "exit_status"}}}},
			want: ExitDiscrepancy,
		},
		{
			name: "no readers",
			sum:  Summary{Readers: []ReaderStatus{{Name: "duckdb", Reason: "reader unavailable"}}},
			want: ExitTotalFailure,
		},
		{
			name: "run error",
			sum:  Summary{Readers: readers, Error: "building candidate: exit status 1"},
			want: ExitTotalFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sum.ExitCode())
		})
	}
}

func TestTallyAndReaderCounts(t *testing.T) {
	sum := Summary{
		Readers: []ReaderStatus{{Name: "parquet-go", Available: true}, {Name: "arrow", Available: true}, {Name: "goparquet", Available: true}},
		Cells: []CellReport{
			{Files: []oracle.FileVerdict{verdicts(oracle.OutcomePassed, oracle.OutcomeMismatch, oracle.OutcomePassed)}},
			{Files: []oracle.FileVerdict{verdicts(oracle.OutcomePassed, oracle.OutcomePassed, oracle.OutcomeReadFailure)}},
			{Failure: &Failure{Reason: "timeout"}},
		},
	}

	tally := sum.Tally()
	assert.Equal(t, 3, tally.Cells)
	assert.Equal(t, 0, tally.PassedCells)
	assert.Equal(t, 1, tally.InvocationFailures)
	assert.Equal(t, 2, tally.Files)
	assert.Equal(t, 2, tally.Discrepancies)
	assert.Equal(t, 1, tally.Aggregate)
	assert.Equal(t, 1, tally.ByKind[oracle.KindValue])

	assert.Equal(t, []ReaderCount{
		{Reader: "parquet-go", Passed: 2},
		{Reader: "arrow", Passed: 1, Mismatch: 1},
		{Reader: "goparquet", Passed: 1, ReadFailure: 1},
	}, sum.ReaderCounts())
}
