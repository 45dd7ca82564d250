// Package report renders run summaries, smoke matrices and reader views as
// terminal text or JSON.
package report

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"parquet-oracle/dataset"
	"parquet-oracle/fixtures"
	"parquet-oracle/oracle"
	"parquet-oracle/orchestrator"
	"parquet-oracle/reader"
)

// maxListed bounds the discrepancies printed per file in text output.
const maxListed = 10

type styles struct {
	title lipgloss.Style
	muted lipgloss.Style
	pass  lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
}

// newStyles binds styles to w so colors are only emitted to terminals.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true),
		muted: r.NewStyle().Foreground(lipgloss.Color("#666666")),
		pass:  r.NewStyle().Foreground(lipgloss.Color("#00CC66")).Bold(true),
		fail:  r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("#FFAA00")),
	}
}

func (s styles) status(ok bool) string {
	if ok {
		return s.pass.Render("PASS")
	}
	return s.fail.Render("FAIL")
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(true)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

// Write renders sum in the named format, "text" or "json".
func Write(w io.Writer, format string, sum *orchestrator.Summary) error {
	switch format {
	case "json":
		return WriteJSON(w, sum)
	case "text", "":
		return WriteText(w, sum)
	}
	return fmt.Errorf("unknown report format %q", format)
}

type jsonSummary struct {
	*orchestrator.Summary
	ExitCode     int                        `json:"exit_code"`
	Tally        orchestrator.Tally         `json:"tally"`
	ReaderCounts []orchestrator.ReaderCount `json:"reader_counts"`
}

// WriteJSON writes sum with its tally and exit code as one indented object.
func WriteJSON(w io.Writer, sum *orchestrator.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonSummary{
		Summary:      sum,
		ExitCode:     sum.ExitCode(),
		Tally:        sum.Tally(),
		ReaderCounts: sum.ReaderCounts(),
	}); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteText writes a human readable summary.
func WriteText(w io.Writer, sum *orchestrator.Summary) error {
	st := newStyles(w)
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", st.title.Render("parquet-oracle run"), sum.RunID)
	fmt.Fprintf(&b, "%s %s\n", st.muted.Render("candidate:"), sum.Candidate)
	fmt.Fprintf(&b, "%s %s\n", st.muted.Render("duration: "), sum.Duration.Round(time.Millisecond))
	for _, r := range sum.Readers {
		if r.Available {
			fmt.Fprintf(&b, "%s %s\n", st.muted.Render("reader:   "), r.Name)
		} else {
			fmt.Fprintf(&b, "%s %s %s\n", st.muted.Render("reader:   "), r.Name, st.warn.Render("unavailable: "+r.Reason))
		}
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	cells := newTable(w, "Cell", "Rows", "Columns", "Files", "Discrepancies", "Status")
	for i := range sum.Cells {
		c := &sum.Cells[i]
		n := 0
		for _, f := range c.Files {
			n += len(f.Discrepancies())
		}
		status := st.status(c.Passed())
		if c.Failure != nil {
			status = st.fail.Render("CANDIDATE " + strings.ToUpper(c.Failure.Reason))
		}
		cells.Append([]string{c.Name, strconv.Itoa(c.Rows), strconv.Itoa(c.Columns), strconv.Itoa(len(c.Files)), strconv.Itoa(n), status})
	}
	cells.Render()
	io.WriteString(w, "\n")

	readers := newTable(w, "Reader", "Passed", "Mismatch", "Read failure", "Unavailable")
	for _, rc := range sum.ReaderCounts() {
		readers.Append([]string{rc.Reader, strconv.Itoa(rc.Passed), strconv.Itoa(rc.Mismatch), strconv.Itoa(rc.ReadFailure), strconv.Itoa(rc.Unavailable)})
	}
	readers.Render()

	b.Reset()
	for i := range sum.Cells {
		c := &sum.Cells[i]
		if c.Failure != nil {
			fmt.Fprintf(&b, "\n%s %s: %s\n", st.fail.Render("x"), c.Name, c.Failure.Message)
			if stderr := strings.TrimSpace(c.Failure.Stderr); stderr != "" {
				for _, line := range strings.Split(stderr, "\n") {
					fmt.Fprintf(&b, "    %s\n", st.muted.Render(line))
				}
			}
			continue
		}
		for _, f := range c.Files {
			ds := f.Discrepancies()
			if len(ds) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n%s %s %s\n", st.fail.Render("x"), c.Name, st.muted.Render(f.Path))
			for j, d := range ds {
				if j == maxListed {
					fmt.Fprintf(&b, "    ... %d more\n", len(ds)-maxListed)
					break
				}
				fmt.Fprintf(&b, "    %s\n", d)
			}
		}
	}
	if c := retained(sum); c != "" {
		fmt.Fprintf(&b, "\n%s\n", c)
	}
	if sum.Aborted != "" {
		fmt.Fprintf(&b, "\n%s %s\n", st.warn.Render("aborted:"), sum.Aborted)
	}
	switch {
	case sum.BuildOutput != "":
		fmt.Fprintf(&b, "\n%s candidate build failed\n", st.fail.Render("error:"))
		b.WriteString(sum.BuildOutput)
		if !strings.HasSuffix(sum.BuildOutput, "\n") {
			b.WriteString("\n")
		}
	case sum.Error != "":
		fmt.Fprintf(&b, "\n%s %s\n", st.fail.Render("error:"), sum.Error)
	}

	t := sum.Tally()
	code := sum.ExitCode()
	fmt.Fprintf(&b, "\n%s %d/%d cells, %d/%d files, %d discrepancies (%d aggregate), exit %d\n",
		st.status(code == orchestrator.ExitPassed), t.PassedCells, t.Cells, t.PassedFiles, t.Files, t.Discrepancies, t.Aggregate, code)
	_, err := io.WriteString(w, b.String())
	return err
}

func retained(sum *orchestrator.Summary) string {
	var lines []string
	for _, c := range sum.Cells {
		if c.Retained != "" {
			lines = append(lines, fmt.Sprintf("retained %s: %s", c.Name, c.Retained))
		}
	}
	return strings.Join(lines, "\n")
}

// WriteSmoke renders a fixture smoke report in the named format.
func WriteSmoke(w io.Writer, format string, rep *fixtures.SmokeReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*fixtures.SmokeReport
			Passed bool            `json:"passed"`
			Matrix []fixtures.Cell `json:"matrix"`
		}{rep, rep.Passed(), rep.Matrix()})
	case "text", "":
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	st := newStyles(w)
	t := newTable(w, "Producer", "Reader", "Passed", "Failed", "Skipped")
	for _, c := range rep.Matrix() {
		t.Append([]string{c.Producer, c.Reader, strconv.Itoa(c.Passed), strconv.Itoa(c.Failed), strconv.Itoa(c.Skipped)})
	}
	t.Render()

	var b strings.Builder
	for _, f := range rep.Files {
		for _, v := range f.Verdict.Verdicts {
			if v.Outcome == oracle.OutcomePassed || v.Outcome == oracle.OutcomeUnavailable {
				continue
			}
			fmt.Fprintf(&b, "%s %s with %s: %s\n", st.fail.Render("x"), f.Entry.Name, v.Reader, v.Outcome)
			for j, d := range v.Discrepancies {
				if j == maxListed {
					fmt.Fprintf(&b, "    ... %d more\n", len(v.Discrepancies)-maxListed)
					break
				}
				fmt.Fprintf(&b, "    %s\n", d)
			}
		}
	}
	fmt.Fprintf(&b, "\n%s %d fixtures\n", st.status(rep.Passed()), len(rep.Files))
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteResult renders one reader's normalized view of a file.
func WriteResult(w io.Writer, res *reader.Result) error {
	st := newStyles(w)
	fmt.Fprintf(w, "%s %s\n", st.title.Render(res.Reader), res.Path)
	fmt.Fprintf(w, "rows %d, columns %d, row groups %d, codecs %s, encodings %s\n",
		res.NumRows, res.NumColumns, res.RowGroups, listOrDash(res.Codecs), listOrDash(res.Encodings))

	t := newTable(w, "Column", "Type", "Native", "Nulls", "First", "Last", "Sum")
	for _, c := range res.Columns {
		sum := ""
		switch {
		case c.IntSum != nil:
			sum = c.IntSum.String()
		case c.Type.IsFloat():
			sum = strconv.FormatFloat(c.FloatSum, 'g', -1, 64)
		case c.Type == dataset.Boolean:
			sum = fmt.Sprintf("true=%d", c.TrueCount)
		}
		t.Append([]string{c.Name, string(c.Type), c.NativeType, strconv.FormatInt(c.NullCount, 10), samples(c.First), samples(c.Last), sum})
	}
	t.Render()
	_, err := io.WriteString(w, "\n")
	return err
}

func listOrDash(v []string) string {
	if len(v) == 0 {
		return "-"
	}
	return strings.Join(v, ",")
}

func samples(vals []any) string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = FormatValue(v)
	}
	return "[" + strings.Join(out, " ") + "]"
}

// FormatValue prints a raw reader value compactly.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case []byte:
		return hex.EncodeToString(x)
	case time.Time:
		return x.UTC().Format(time.DateOnly)
	case reader.Decimal:
		if x.Unscaled == nil {
			return "null"
		}
		r := new(big.Rat).SetFrac(x.Unscaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(x.Scale)), nil))
		return r.FloatString(int(x.Scale))
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return strconv.Quote(x)
	}
	return fmt.Sprint(v)
}
