package factoid

import "errors"

// ErrInvalidStructure indicates a model response that could not be
// normalized into the three-field factoid payload. Extraction failures
// are deterministic, so they are never retried.
var ErrInvalidStructure = errors.New("model output did not match the factoid schema")

// GenerationError is the terminal failure surfaced to callers when an
// attempt gets past the rate and budget checks but cannot produce a
// factoid. Detail is a generic client-safe message; the underlying cause
// stays on the request record and in the error chain.
type GenerationError struct {
	Detail string
	cause  error
}

func (e *GenerationError) Error() string {
	return e.Detail
}

func (e *GenerationError) Unwrap() error {
	return e.cause
}
