package models

import "errors"

var (
	// ErrMissingData means no bars or events exist for the requested symbol/range.
	// Batch operations recover from it locally.
	ErrMissingData = errors.New("missing data")

	// ErrDegenerate means the input makes a computation undefined (e.g. zero price range)
	ErrDegenerate = errors.New("degenerate computation")

	// ErrUpstream wraps collaborator fetch failures (timeouts, connection errors)
	ErrUpstream = errors.New("upstream failure")

	// ErrConfiguration means the request refers to something not configured (unknown category)
	ErrConfiguration = errors.New("configuration error")
)
