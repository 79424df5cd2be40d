package apperrors

import (
	"errors"
	"fmt"
)

// ErrNothingPackaged is returned when a packaging request produced no archive
// entry at all.
var ErrNothingPackaged = errors.New("no title could be packaged")

// ErrCatalogUnavailable is returned when the catalog feed cannot be retrieved.
type ErrCatalogUnavailable struct {
	URL        string
	StatusCode int // 0 when the request itself failed
	Cause      error
}

// Error implements the error interface.
func (e *ErrCatalogUnavailable) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog unavailable at %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("catalog unavailable at %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrCatalogUnavailable) Unwrap() error { return e.Cause }

// Is allows for error checking with errors.Is().
func (e *ErrCatalogUnavailable) Is(target error) bool {
	_, ok := target.(*ErrCatalogUnavailable)
	return ok
}

// ErrResolutionFailed is returned when the download links of a title cannot be
// resolved for one of the target languages.
type ErrResolutionFailed struct {
	NaturalKey string
	Language   string
	URL        string
	Reason     string
	Cause      error
}

// Error implements the error interface.
func (e *ErrResolutionFailed) Error() string {
	msg := fmt.Sprintf("resolve %s [%s]: %s", e.NaturalKey, e.Language, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *ErrResolutionFailed) Unwrap() error { return e.Cause }

// Is allows for error checking with errors.Is().
func (e *ErrResolutionFailed) Is(target error) bool {
	_, ok := target.(*ErrResolutionFailed)
	return ok
}

// ErrDownloadFailed is returned when a media or subtitle payload cannot be fetched.
type ErrDownloadFailed struct {
	URL        string
	Role       string
	StatusCode int // 0 when the request or the body copy failed
	Cause      error
}

// Error implements the error interface.
func (e *ErrDownloadFailed) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s from %s: status %d", e.Role, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s from %s: %v", e.Role, e.URL, e.Cause)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrDownloadFailed) Unwrap() error { return e.Cause }

// Is allows for error checking with errors.Is().
func (e *ErrDownloadFailed) Is(target error) bool {
	_, ok := target.(*ErrDownloadFailed)
	return ok
}

// ErrMuxFailed is returned when the multiplexer exits unsuccessfully.
type ErrMuxFailed struct {
	Title    string
	ExitCode int    // -1 when the process could not be started or was killed
	Stderr   string // tail of the process diagnostic output
	Cause    error
}

// Error implements the error interface.
func (e *ErrMuxFailed) Error() string {
	msg := fmt.Sprintf("mux %q failed (exit code %d)", e.Title, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *ErrMuxFailed) Unwrap() error { return e.Cause }

// Is allows for error checking with errors.Is().
func (e *ErrMuxFailed) Is(target error) bool {
	_, ok := target.(*ErrMuxFailed)
	return ok
}

// ErrPublishFailed is returned when an archive cannot be uploaded to the blob store.
type ErrPublishFailed struct {
	Name     string
	Provider string
	Cause    error
}

// Error implements the error interface.
func (e *ErrPublishFailed) Error() string {
	return fmt.Sprintf("publish %s to %s: %v", e.Name, e.Provider, e.Cause)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrPublishFailed) Unwrap() error { return e.Cause }

// Is allows for error checking with errors.Is().
func (e *ErrPublishFailed) Is(target error) bool {
	_, ok := target.(*ErrPublishFailed)
	return ok
}
