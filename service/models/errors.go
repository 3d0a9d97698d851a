/*
 * @module service/models/errors
 * @description Error taxonomy of the pipeline: schema violations, fetch failures, parse failures and insufficient-data conditions
 * @architecture Layered architecture - shared data model
 * @documentReference service/pipeline, client, service/loader
 * @stateFlow Errors propagate up to the API layer which maps them to HTTP statuses
 * @rules SchemaError aborts a pipeline run; fetch/parse errors abort only the load step; per-value coercion failures surface as dropped-row counts, never as errors
 * @dependencies errors, fmt, strings
 * @refs api/controllers
 */

package models

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError reports required columns absent from a batch. Fatal to the
// current pipeline run; the caller must not proceed to dimension or fact
// construction.
type SchemaError struct {
	Dataset string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset %s: missing required columns: %s", e.Dataset, strings.Join(e.Missing, ", "))
}

// FetchError kinds.
const (
	FetchErrorNetwork = "network"
	FetchErrorStatus  = "status"
	FetchErrorPayload = "payload"
)

// FetchError reports a failed remote dataset retrieval. It aborts only the
// load step; prior session state stays untouched.
type FetchError struct {
	Kind       string
	Resource   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchErrorStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Resource, e.StatusCode)
	case FetchErrorPayload:
		return fmt.Sprintf("fetch %s: malformed payload: %v", e.Resource, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports an unreadable uploaded file. It aborts only the load
// step.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrInsufficientData is returned by statistics that need at least two
// paired, non-missing observations.
var ErrInsufficientData = errors.New("insufficient data: need at least two paired observations")
