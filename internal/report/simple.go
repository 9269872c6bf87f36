package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/nao1215/digestfetch/internal/database"
	"github.com/nao1215/digestfetch/internal/model"
)

// SimpleWriter outputs human-readable text for the terminal.
// Statuses are coloured when colour is enabled; the layout is identical
// either way so output can be piped or diffed.
type SimpleWriter struct {
	baseWriter

	// verbose lists every outcome instead of only failures.
	verbose bool

	// colors maps an outcome status to its formatter.
	colors map[model.OutcomeStatus]func(format string, a ...any) string
	bold   func(format string, a ...any) string
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every digest, not only the failed ones.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithColor enables or disables ANSI colours.
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.colors, w.bold = palette(enabled)
	}
}

// palette builds the status formatters.
func palette(enabled bool) (map[model.OutcomeStatus]func(string, ...any) string, func(string, ...any) string) {
	mk := func(attrs ...color.Attribute) func(string, ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintfFunc()
	}
	return map[model.OutcomeStatus]func(string, ...any) string{
		model.OutcomeStored:   mk(color.FgGreen),
		model.OutcomeMissing:  mk(color.FgYellow),
		model.OutcomeFailed:   mk(color.FgRed, color.Bold),
		model.OutcomeFiltered: mk(color.FgHiBlack),
	}, mk(color.Bold)
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
// Colour is off unless WithColor(true) is given.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	w.colors, w.bold = palette(false)

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *SimpleWriter) status(s model.OutcomeStatus) string {
	if f, ok := w.colors[s]; ok {
		return f("%-8s", s.String())
	}
	return fmt.Sprintf("%-8s", s.String())
}

// WriteRun outputs a run summary followed by failures (or all outcomes in
// verbose mode).
func (w *SimpleWriter) WriteRun(report *model.RunReport) (int, error) {
	var sb strings.Builder
	s := report.Summary()

	sb.WriteString("\n")
	sb.WriteString(w.bold("digestfetch run"))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Archive:  %s\n", report.ArchiveURL)
	fmt.Fprintf(&sb, "Output:   %s\n", report.OutDir)
	fmt.Fprintf(&sb, "Started:  %s\n", report.StartedAt.Format(timeLayout))
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(&sb, "Duration: %s\n", d.Round(100*time.Millisecond))
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "  %s %d (%s)\n", w.status(model.OutcomeStored), s.Stored, formatBytes(s.Bytes))
	fmt.Fprintf(&sb, "  %s %d\n", w.status(model.OutcomeMissing), s.Missing)
	fmt.Fprintf(&sb, "  %s %d\n", w.status(model.OutcomeFailed), s.Failed)
	if s.Filtered > 0 {
		fmt.Fprintf(&sb, "  %s %d\n", w.status(model.OutcomeFiltered), s.Filtered)
	}
	sb.WriteString("\n")

	for _, o := range report.Outcomes {
		if !w.verbose && o.Status != model.OutcomeFailed {
			continue
		}
		fmt.Fprintf(&sb, "  %s %s", o.Ref, w.status(o.Status))
		switch {
		case o.Status == model.OutcomeStored:
			fmt.Fprintf(&sb, " %s", o.Path)
		case o.Error != "":
			fmt.Fprintf(&sb, " %s", o.Error)
		}
		sb.WriteString("\n")
	}

	if report.Error != "" {
		fmt.Fprintf(&sb, "\n%s %s\n", w.colors[model.OutcomeFailed]("Error:"), report.Error)
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs one line per run.
func (w *SimpleWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%s\n", w.bold("%-5s %-23s %7s %7s %7s  %s", "ID", "STARTED", "STORED", "MISSING", "FAILED", "ARCHIVE"))
	for _, r := range runs {
		failed := fmt.Sprintf("%7d", r.Summary.Failed)
		if r.Summary.Failed > 0 || r.Error != "" {
			failed = w.colors[model.OutcomeFailed]("%7d", r.Summary.Failed)
		}
		fmt.Fprintf(&sb, "%-5d %-23s %7d %7d %s  %s\n",
			r.ID,
			r.StartedAt.Local().Format(timeLayout),
			r.Summary.Stored,
			r.Summary.Missing,
			failed,
			r.ArchiveURL,
		)
		if w.verbose && r.Error != "" {
			fmt.Fprintf(&sb, "      %s\n", r.Error)
		}
	}

	return w.output.Write([]byte(sb.String()))
}
