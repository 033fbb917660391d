package gateway

import "errors"

var (
	// ErrEmptyInput rejects a request before any collaborator is invoked.
	ErrEmptyInput = errors.New("input text is required")

	// ErrSynthesisFailed marks a fatal pipeline failure: no answer could
	// be produced, so the request surfaces as service-unavailable.
	ErrSynthesisFailed = errors.New("answer synthesis failed")
)
