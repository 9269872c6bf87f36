package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/digestfetch/internal/database"
	"github.com/nao1215/digestfetch/internal/model"
)

// JSONWriter outputs reports in JSON format for scripts.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// runJSON adds the computed summary to a run.
type runJSON struct {
	*model.RunReport
	Summary model.RunSummary `json:"summary"`
}

// historyJSON is the JSON shape of one history entry.
type historyJSON struct {
	ID         int64            `json:"id"`
	ArchiveURL string           `json:"archive_url"`
	OutDir     string           `json:"out_dir"`
	Username   string           `json:"username"`
	ListMode   string           `json:"list_mode"`
	StartedAt  string           `json:"started_at"`
	FinishedAt string           `json:"finished_at,omitempty"`
	Error      string           `json:"error,omitempty"`
	Summary    model.RunSummary `json:"summary"`
}

// WriteRun outputs the run and its summary.
func (w *JSONWriter) WriteRun(report *model.RunReport) (int, error) {
	return w.writeJSON(runJSON{RunReport: report, Summary: report.Summary()})
}

// WriteHistory outputs the runs as a JSON array.
func (w *JSONWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	out := make([]historyJSON, len(runs))
	for i, r := range runs {
		out[i] = historyJSON{
			ID:         r.ID,
			ArchiveURL: r.ArchiveURL,
			OutDir:     r.OutDir,
			Username:   r.Username,
			ListMode:   r.ListMode,
			StartedAt:  r.StartedAt.Format(jsonTimeLayout),
			Error:      r.Error,
			Summary:    r.Summary,
		}
		if !r.FinishedAt.IsZero() {
			out[i].FinishedAt = r.FinishedAt.Format(jsonTimeLayout)
		}
	}
	return w.writeJSON(out)
}

const jsonTimeLayout = "2006-01-02T15:04:05Z07:00"

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Trailing newline for terminal output.
	data = append(data, '\n')
	return w.output.Write(data)
}
