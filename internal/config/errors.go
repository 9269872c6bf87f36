package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoUsername is returned when no archive username is configured.
	ErrNoUsername = errors.New("no username specified: use -u or set username in the config file")

	// ErrNoPassword is returned when no archive password is configured.
	ErrNoPassword = errors.New("no password specified: use -p or set password in the config file")

	// ErrNoOutDir is returned when the output directory argument is missing.
	ErrNoOutDir = errors.New("no output directory specified")

	// ErrNoArchiveURL is returned when the login or archive URL is empty.
	ErrNoArchiveURL = errors.New("login and archive URLs must not be empty")

	// ErrInvalidListMode is returned for a list mode other than index or probe.
	ErrInvalidListMode = errors.New("invalid list mode: must be \"index\" or \"probe\"")

	// ErrInvalidStartYear is returned when probe mode has no usable start year.
	ErrInvalidStartYear = errors.New("invalid start year: must be positive")

	// ErrInvalidFailurePolicy is returned for an on-error policy other than skip or abort.
	ErrInvalidFailurePolicy = errors.New("invalid failure policy: must be \"skip\" or \"abort\"")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
