// Package dberr defines the observable error-kind taxonomy used across the
// pipeline (engine, resolver, validator). Kinds are cockroachdb/errors
// marks rather than typed error structs, so a single error value can be
// tested with errors.Is against a kind while still carrying a normal wrapped
// chain and structured detail fields.
package dberr

import (
	"github.com/cockroachdb/errors"
)

// Kind sentinels. Mark an error with one of these via Wrap/Mark, test with
// Is.
var (
	TransientNetwork = errors.New("transient_network")
	RateLimited      = errors.New("rate_limited")
	ServerError      = errors.New("server_error")
	ParseError       = errors.New("parse_error")
	ValidationError  = errors.New("validation_error")
	ResolutionError  = errors.New("resolution_error")
	Ambiguity        = errors.New("ambiguity")
	Conflict         = errors.New("db_conflict")
	Fatal            = errors.New("fatal")
)

// Mark wraps err and marks it with kind so errors.Is(result, kind) succeeds.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, kind)
}

// Markf wraps a new formatted error and marks it with kind in one call.
func Markf(kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}

// Is reports whether err is marked with kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

// WithDetail attaches structured, loggable context (adapter id, item id,
// attempt count, ...) to an error without changing its message.
func WithDetail(err error, key, value string) error {
	return errors.WithDetail(err, key+"="+value)
}

// Retryable reports whether a kind should be retried under the adapter's
// backoff policy per spec: transient_network, rate_limited, and
// server_error are retried; everything else is not.
func Retryable(err error) bool {
	return Is(err, TransientNetwork) || Is(err, RateLimited) || Is(err, ServerError)
}
