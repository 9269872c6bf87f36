package archive

import (
	"errors"
	"fmt"
)

// Causes wrapped by the typed errors below. Match them with errors.Is.
var (
	// ErrMissingCredentials is returned when username or password is empty.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrInvalidCredentials is returned when the archive answers the login
	// with the login form again, which is how Mailman rejects credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionRejected is returned when an authenticated request is answered
	// with 401/403 or with the login form.
	ErrSessionRejected = errors.New("session rejected by archive")

	// ErrUnrecognizedListing is returned when the index page contains no month links.
	ErrUnrecognizedListing = errors.New("no monthly digests found on listing page")

	// ErrDigestMissing is returned for months the archive has no digest for.
	ErrDigestMissing = errors.New("digest does not exist")

	// ErrUnexpectedStatus is returned for non-success HTTP responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is returned when a digest exceeds the configured size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrNilSession is returned when an operation is called without a session.
	ErrNilSession = errors.New("no session: call Authenticate first")
)

// AuthError reports a failed login.
type AuthError struct {
	URL string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication at %s failed: %v", e.URL, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ListError reports a failure to enumerate digests.
type ListError struct {
	URL string
	Err error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("listing %s failed: %v", e.URL, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// FetchError reports a failure to download one digest.
type FetchError struct {
	Ref Reference
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching digest %s from %s failed: %v", e.Ref, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IOError reports a failure to write one digest to disk.
type IOError struct {
	Ref  Reference
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storing digest %s to %s failed: %v", e.Ref, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// statusError wraps ErrUnexpectedStatus with the status line.
func statusError(code int, status string) error {
	if status == "" {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}
	return fmt.Errorf("%w: %s", ErrUnexpectedStatus, status)
}
