package model

import (
	"fmt"
	"strings"
	"time"
)

// OutcomeStatus is what happened to one digest during a run.
type OutcomeStatus int

const (
	// OutcomeStored means the digest was downloaded and written to disk.
	OutcomeStored OutcomeStatus = iota

	// OutcomeMissing means the archive has no digest for the month.
	// This is not a failure: empty months are normal for a mailing list.
	OutcomeMissing

	// OutcomeFailed means downloading or writing the digest failed.
	OutcomeFailed

	// OutcomeFiltered means the reference was excluded by the filter expression.
	OutcomeFiltered
)

// String returns the lowercase name used in reports and the history database.
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeStored:
		return "stored"
	case OutcomeMissing:
		return "missing"
	case OutcomeFailed:
		return "failed"
	case OutcomeFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so JSON output uses the name.
func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OutcomeStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcomeStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseOutcomeStatus converts a status name back to an OutcomeStatus.
func ParseOutcomeStatus(name string) (OutcomeStatus, error) {
	switch strings.ToLower(name) {
	case "stored":
		return OutcomeStored, nil
	case "missing":
		return OutcomeMissing, nil
	case "failed":
		return OutcomeFailed, nil
	case "filtered":
		return OutcomeFiltered, nil
	default:
		return 0, fmt.Errorf("unknown outcome status %q", name)
	}
}

// DigestOutcome records the result for one monthly digest.
type DigestOutcome struct {
	// Ref is the digest reference in "YYYY-MM" form.
	Ref string `json:"ref"`

	// Status is what happened to the digest.
	Status OutcomeStatus `json:"status"`

	// Path is the written file. Empty unless Status is OutcomeStored.
	Path string `json:"path,omitempty"`

	// Size is the number of bytes written.
	Size int64 `json:"size,omitempty"`

	// Checksum is the hex SHA3-256 of the stored content.
	Checksum string `json:"checksum,omitempty"`

	// Error is the failure message for OutcomeFailed.
	Error string `json:"error,omitempty"`

	// At is when the outcome was decided.
	At time.Time `json:"at"`
}
