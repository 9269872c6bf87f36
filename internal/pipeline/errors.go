package pipeline

import "errors"

var (
	// ErrIncomplete is returned when the run finished but at least one
	// digest could not be downloaded or stored.
	ErrIncomplete = errors.New("download incomplete")

	// ErrAborted is returned when the abort policy stopped the run.
	ErrAborted = errors.New("download aborted")

	// ErrInvalidFilter is returned for filter expressions that do not
	// compile or do not evaluate to a boolean.
	ErrInvalidFilter = errors.New("invalid filter expression")

	// ErrInvalidPolicy is returned for unknown failure policy names.
	ErrInvalidPolicy = errors.New("invalid failure policy: expected skip or abort")
)
