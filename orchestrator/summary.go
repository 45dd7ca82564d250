package orchestrator

import (
	"time"

	"parquet-oracle/candidate"
	"parquet-oracle/oracle"
)

// Exit codes of a verification run.
const (
	ExitPassed       = 0
	ExitDiscrepancy  = 1
	ExitTotalFailure = 2
)

// ReaderStatus is whether a reader took part in the run.
type ReaderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Failure describes a candidate invocation that produced nothing to check.
type Failure struct {
	Reason   string `json:"reason"`
	ExitCode int    `json:"exit_code,omitempty"`
	Message  string `json:"message"`
	Stderr   string `json:"stderr,omitempty"`
}

func newFailure(err error, invErr *candidate.InvocationError) *Failure {
	f := &Failure{Reason: "error", Message: err.Error()}
	if invErr != nil {
		f.Reason = invErr.Reason.String()
		f.Stderr = invErr.Stderr
		if invErr.Reason == candidate.ReasonExitStatus {
			f.ExitCode = invErr.ExitCode
		}
	}
	return f
}

// CellReport is the result of one pattern x codec x encoding cell.
type CellReport struct {
	Name     string `json:"name"`
	Pattern  string `json:"pattern"`
	Codec    string `json:"codec"`
	Encoding string `json:"encoding,omitempty"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`

	InvocationID string               `json:"invocation_id,omitempty"`
	Duration     time.Duration        `json:"duration"`
	Failure      *Failure             `json:"failure,omitempty"`
	Files        []oracle.FileVerdict `json:"files,omitempty"`

	// Retained is where the cell's files were kept or uploaded, if anywhere.
	Retained string `json:"retained,omitempty"`
}

// Passed reports whether the candidate ran and every file passed.
func (c *CellReport) Passed() bool {
	if c.Failure != nil || len(c.Files) == 0 {
		return false
	}
	for _, f := range c.Files {
		if !f.Passed() {
			return false
		}
	}
	return true
}

// Summary accumulates a whole run.
type Summary struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Candidate string         `json:"candidate"`
	Readers   []ReaderStatus `json:"readers"`
	Cells     []CellReport   `json:"cells"`

	// Aborted is set when the run stopped before the last cell.
	Aborted string `json:"aborted,omitempty"`

	// Error is the error that ended the run, such as a failed build.
	Error string `json:"error,omitempty"`

	// BuildOutput is the verbatim output of a failed candidate build.
	BuildOutput string `json:"build_output,omitempty"`
}

// AvailableReaders returns the names of the readers that took part.
func (s *Summary) AvailableReaders() []string {
	var out []string
	for _, r := range s.Readers {
		if r.Available {
			out = append(out, r.Name)
		}
	}
	return out
}

// ExitCode maps the run to 0 (every available reader passed every file),
// 1 (discrepancies or candidate failures) or 2 (nothing could be checked:
// no reader available, a file no reader could open, or a run error).
func (s *Summary) ExitCode() int {
	if s.Error != "" || len(s.AvailableReaders()) == 0 {
		return ExitTotalFailure
	}
	code := ExitPassed
	for i := range s.Cells {
		c := &s.Cells[i]
		for _, f := range c.Files {
			if !f.Readable() {
				return ExitTotalFailure
			}
		}
		if !c.Passed() {
			code = ExitDiscrepancy
		}
	}
	if s.Aborted != "" {
		code = ExitDiscrepancy
	}
	return code
}

// Tally is the run at a glance.
type Tally struct {
	Cells              int                 `json:"cells"`
	PassedCells        int                 `json:"passed_cells"`
	InvocationFailures int                 `json:"invocation_failures"`
	Files              int                 `json:"files"`
	PassedFiles        int                 `json:"passed_files"`
	Discrepancies      int                 `json:"discrepancies"`
	Aggregate          int                 `json:"aggregate_discrepancies"`
	ByKind             map[oracle.Kind]int `json:"by_kind"`
}

func (s *Summary) Tally() Tally {
	t := Tally{ByKind: map[oracle.Kind]int{}}
	for i := range s.Cells {
		c := &s.Cells[i]
		t.Cells++
		if c.Passed() {
			t.PassedCells++
		}
		if c.Failure != nil {
			t.InvocationFailures++
		}
		for _, f := range c.Files {
			t.Files++
			if f.Passed() {
				t.PassedFiles++
			}
			for _, d := range f.Discrepancies() {
				t.Discrepancies++
				if d.Kind.Severity() == oracle.SeverityAggregate {
					t.Aggregate++
				}
				t.ByKind[d.Kind]++
			}
		}
	}
	return t
}

// ReaderCount tallies one reader's verdicts across the run.
type ReaderCount struct {
	Reader      string `json:"reader"`
	Passed      int    `json:"passed"`
	Mismatch    int    `json:"mismatch"`
	ReadFailure int    `json:"read_failure"`
	Unavailable int    `json:"unavailable"`
}

// ReaderCounts returns one count per reader, in the order readers were
// registered.
func (s *Summary) ReaderCounts() []ReaderCount {
	out := make([]ReaderCount, len(s.Readers))
	pos := make(map[string]int, len(s.Readers))
	for i, r := range s.Readers {
		out[i].Reader = r.Name
		pos[r.Name] = i
	}
	for i := range s.Cells {
		for _, f := range s.Cells[i].Files {
			for _, v := range f.Verdicts {
				j, ok := pos[v.Reader]
				if !ok {
					j = len(out)
					pos[v.Reader] = j
					out = append(out, ReaderCount{Reader: v.Reader})
				}
				switch v.Outcome {
				case oracle.OutcomePassed:
					out[j].Passed++
				case oracle.OutcomeMismatch:
					out[j].Mismatch++
				case oracle.OutcomeReadFailure:
					out[j].ReadFailure++
				case oracle.OutcomeUnavailable:
					out[j].Unavailable++
				}
			}
		}
	}
	return out
}
