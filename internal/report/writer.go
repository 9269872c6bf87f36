package report

import (
	"fmt"
	"io"

	"github.com/nao1215/digestfetch/internal/database"
	"github.com/nao1215/digestfetch/internal/model"
)

// Writer renders runs and run history.
// Implementations differ only in format; all of them write to an io.Writer.
type Writer interface {
	// WriteRun renders the report of a single run.
	WriteRun(report *model.RunReport) (int, error)

	// WriteHistory renders a list of past runs, newest first.
	WriteHistory(runs []database.RunRecord) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is used for all timestamps in text and Markdown output.
const timeLayout = "2006-01-02 15:04:05 MST"

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
