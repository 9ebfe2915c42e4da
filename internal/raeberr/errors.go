// Package raeberr defines the error taxonomy shared by every router and
// memory-store component.
package raeberr

import "fmt"

// Code identifies the kind of failure, per the error taxonomy table.
type Code string

const (
	MissingCredentials Code = "missing_credentials"
	TransientIO        Code = "transient_io"
	UpstreamError      Code = "upstream_error"
	Cancelled          Code = "cancelled"
	BadRequest         Code = "bad_request"
	StoreCorruption    Code = "store_corruption"
	ShardLockedTimeout Code = "shard_locked_timeout"
	PipelineError      Code = "pipeline_error"
)

// Error is the single error type surfaced by the core. It is never used for
// control flow across the adapter boundary: adapters report failures
// in-band on the response, not via a returned error.
type Error struct {
	Code      Code
	Message   string
	Provider  string
	Retryable bool
	Step      string // set only for PipelineError
	Err       error  // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider=%s)", e.Code, e.Message, e.Provider)
	}
	if e.Step != "" {
		return fmt.Sprintf("%s: %s (step=%s)", e.Code, e.Message, e.Step)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// MissingCreds reports an adapter that could not find its credentials.
func MissingCreds(provider string) *Error {
	return &Error{Code: MissingCredentials, Message: "missing credentials", Provider: provider}
}

// Upstream wraps a terminal upstream failure after retries are exhausted.
func Upstream(provider string, err error) *Error {
	return &Error{Code: UpstreamError, Message: err.Error(), Provider: provider, Err: err}
}

// Transient wraps a retryable upstream failure.
func Transient(provider string, err error) *Error {
	return &Error{Code: TransientIO, Message: err.Error(), Provider: provider, Retryable: true, Err: err}
}

// CancelledErr reports a dispatch cancelled by the caller's deadline.
func CancelledErr(provider string) *Error {
	return &Error{Code: Cancelled, Message: "dispatch cancelled", Provider: provider}
}

// Bad reports a malformed request raised to the caller.
func Bad(message string) *Error {
	return &Error{Code: BadRequest, Message: message}
}

// Corruption reports a failed integrity check.
func Corruption(message string) *Error {
	return &Error{Code: StoreCorruption, Message: message}
}

// ShardLocked reports a shard lock that timed out after one internal retry.
func ShardLocked(shard string) *Error {
	return &Error{Code: ShardLockedTimeout, Message: "shard lock timeout", Provider: shard}
}

// Pipeline wraps an unrecoverable orchestrator step failure.
func Pipeline(step string, err error) *Error {
	return &Error{Code: PipelineError, Message: err.Error(), Step: step, Err: err}
}

// IsRetryable reports whether err (if it is an *Error) is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}
