package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/digestfetch/internal/database"
	"github.com/nao1215/digestfetch/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, for keeping next to
// the downloaded digests or sharing with other list members.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteRun outputs a run report in Markdown format.
func (w *MarkdownWriter) WriteRun(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeOutcomes(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Digest Download Report")
	md.PlainText("")

	finished := "-"
	if !report.FinishedAt.IsZero() {
		finished = report.FinishedAt.Format(timeLayout)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Archive", "`" + report.ArchiveURL + "`"},
			{"Output Directory", "`" + report.OutDir + "`"},
			{"Member", report.Username},
			{"Listing", report.ListMode},
			{"Started", report.StartedAt.Format(timeLayout)},
			{"Finished", finished},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the overall status of a run.
func statusText(report *model.RunReport) string {
	switch {
	case report.Error != "" && report.Summary().Failed == 0:
		return "❌ Error - " + report.Error
	case report.Summary().Failed > 0:
		return "⚠️ Incomplete"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport) {
	s := report.Summary()

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Stored", strconv.Itoa(s.Stored)},
			{"Missing", strconv.Itoa(s.Missing)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Filtered", strconv.Itoa(s.Filtered)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
			{"Bytes written", formatBytes(s.Bytes)},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		w.writePieChart(md, s)
	}

	switch {
	case report.Error != "" && s.Failed == 0:
		md.Cautionf("The run stopped early: %s", report.Error)
	case s.Failed > 0:
		md.Warningf("%d digest(s) could not be downloaded. Rerun to retry them.", s.Failed)
	case s.Stored == 0:
		md.Note("No digest was stored.")
	default:
		md.Tip(fmt.Sprintf("All %d available digest(s) were stored.", s.Stored))
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Digest Outcomes"),
		piechart.WithShowData(true),
	)

	for _, part := range []struct {
		label string
		count int
	}{
		{"Stored", s.Stored},
		{"Missing", s.Missing},
		{"Failed", s.Failed},
		{"Filtered", s.Filtered},
	} {
		if part.count > 0 {
			chart.LabelAndIntValue(part.label, uint64(part.count))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Digests")
	md.PlainText("")

	if len(report.Outcomes) == 0 {
		md.PlainText("No digests were processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Outcomes))
	for i, o := range report.Outcomes {
		detail := "-"
		switch {
		case o.Status == model.OutcomeStored:
			detail = "`" + o.Path + "`"
		case o.Error != "":
			detail = truncateString(o.Error, 80)
		}
		size := "-"
		if o.Status == model.OutcomeStored {
			size = formatBytes(o.Size)
		}
		checksum := "-"
		if o.Checksum != "" {
			checksum = "`" + truncateString(o.Checksum, 16) + "`"
		}
		rows[i] = []string{o.Ref, o.Status.String(), size, checksum, detail}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Month", "Status", "Size", "SHA3-256", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, o := range report.Failures() {
		md.Details(o.Ref+" error", o.Error)
	}
	md.PlainText("")
}

// WriteHistory outputs past runs as a Markdown table.
func (w *MarkdownWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Download History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		status := "✅"
		if r.Error != "" || r.Summary.Failed > 0 {
			status = "⚠️"
		}
		rows[i] = []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Format(timeLayout),
			"`" + r.ArchiveURL + "`",
			strconv.Itoa(r.Summary.Stored),
			strconv.Itoa(r.Summary.Missing),
			strconv.Itoa(r.Summary.Failed),
			formatBytes(r.Summary.Bytes),
			status,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Archive", "Stored", "Missing", "Failed", "Bytes", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by digestfetch*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
