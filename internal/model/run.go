package model

import "time"

// RunReport is the result of one download run.
// It is filled by the pipeline, rendered by the report package and saved
// to the history database.
type RunReport struct {
	// ID is the history database row id. Zero when history is disabled.
	ID int64 `json:"id,omitempty"`

	// ArchiveURL is the archive index the run enumerated.
	ArchiveURL string `json:"archive_url"`

	// OutDir is the directory digests were written to.
	OutDir string `json:"out_dir"`

	// Username is the member the run logged in as.
	Username string `json:"username"`

	// ListMode is "index" or "probe".
	ListMode string `json:"list_mode"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended, successfully or not.
	FinishedAt time.Time `json:"finished_at"`

	// Outcomes holds one entry per processed reference, in listing order.
	Outcomes []DigestOutcome `json:"outcomes,omitempty"`

	// Error is the error that ended the run early or marked it incomplete.
	Error string `json:"error,omitempty"`
}

// RunSummary counts outcomes by status.
type RunSummary struct {
	Total    int   `json:"total"`
	Stored   int   `json:"stored"`
	Missing  int   `json:"missing"`
	Failed   int   `json:"failed"`
	Filtered int   `json:"filtered"`
	Bytes    int64 `json:"bytes"`
}

// NewRunReport returns an empty report started at the given time.
func NewRunReport(archiveURL, outDir string, startedAt time.Time) *RunReport {
	return &RunReport{
		ArchiveURL: archiveURL,
		OutDir:     outDir,
		StartedAt:  startedAt,
		Outcomes:   make([]DigestOutcome, 0),
	}
}

// Add appends an outcome.
func (r *RunReport) Add(o DigestOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Summary counts the outcomes.
func (r *RunReport) Summary() RunSummary {
	s := RunSummary{Total: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		switch o.Status {
		case OutcomeStored:
			s.Stored++
			s.Bytes += o.Size
		case OutcomeMissing:
			s.Missing++
		case OutcomeFailed:
			s.Failed++
		case OutcomeFiltered:
			s.Filtered++
		}
	}
	return s
}

// Failures returns the failed outcomes.
func (r *RunReport) Failures() []DigestOutcome {
	failed := make([]DigestOutcome, 0)
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Succeeded reports whether the run finished without any error.
func (r *RunReport) Succeeded() bool {
	return r.Error == "" && r.Summary().Failed == 0
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
