// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrSessionExpired   = errors.New("session expired")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrDataNotFound     = errors.New("data not found")
	ErrMalformedData    = errors.New("malformed response data")
	ErrCacheCorrupt     = errors.New("cache entry corrupt")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrStreamClosed     = errors.New("stream closed")
	ErrNoResults        = errors.New("no results")
)

// Is reports whether any error in err's chain matches target.
// Re-exported so callers don't need a second errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// FetchError represents a failed snapshot fetch.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch error [%s] status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch error [%s] status %d", e.Endpoint, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(endpoint string, status int, err error) *FetchError {
	return &FetchError{
		Endpoint: endpoint,
		Status:   status,
		Err:      err,
	}
}

// SearchError represents a failed remote search.
type SearchError struct {
	Query  string
	Reason string
	Err    error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search error %q: %s: %v", e.Query, e.Reason, e.Err)
	}
	return fmt.Sprintf("search error %q: %s", e.Query, e.Reason)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError creates a new SearchError.
func NewSearchError(query, reason string, err error) *SearchError {
	return &SearchError{
		Query:  query,
		Reason: reason,
		Err:    err,
	}
}

// StreamError represents an error on the push update channel.
type StreamError struct {
	State   string
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream error [%s]: %s: %v", e.State, e.Message, e.Err)
	}
	return fmt.Sprintf("stream error [%s]: %s", e.State, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// NewStreamError creates a new StreamError.
func NewStreamError(state, message string, err error) *StreamError {
	return &StreamError{
		State:   state,
		Message: message,
		Err:     err,
	}
}

// CacheError represents a cache read or write failure. Cache errors are
// never fatal to the engine; callers log and continue.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s [%s]: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewCacheError creates a new CacheError.
func NewCacheError(op, key string, err error) *CacheError {
	return &CacheError{Op: op, Key: key, Err: err}
}
