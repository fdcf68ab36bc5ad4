package types

import "errors"

// Error taxonomy for the engine. Handlers map these onto HTTP statuses and
// user-facing messages; services wrap them with %w so errors.Is works
// across layers.
var (
	// ErrRetrievalUnavailable means the vector index could not be reached.
	// Chat degrades to an ungrounded answer; itinerary planning fails
	// because it needs candidates.
	ErrRetrievalUnavailable = errors.New("knowledge retrieval unavailable")

	// ErrProviderTimeout means the generation call exceeded its deadline.
	// Retryable once.
	ErrProviderTimeout = errors.New("generation provider timed out")

	// ErrMalformedGeneration means the provider output failed contract
	// validation. Retryable once with a stricter prompt.
	ErrMalformedGeneration = errors.New("generation output failed validation")

	// ErrQuotaExceeded means the provider signalled a rate or cost limit.
	// Never retried.
	ErrQuotaExceeded = errors.New("generation provider quota exceeded")

	// ErrInvalidRequest means the request violated a constraint and was
	// rejected before any external call.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSessionNotFound means the supplied conversation identifier does
	// not match a live session.
	ErrSessionNotFound = errors.New("session not found or expired")
)
