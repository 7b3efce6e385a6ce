package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorised indicates the requester does not own the entity.
	ErrUnauthorised = errors.New("unauthorised")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrGateClosed indicates the call gate has been shut down.
	ErrGateClosed = errors.New("call gate closed")

	// ErrRunNotCancellable indicates an evaluation run is already terminal.
	ErrRunNotCancellable = errors.New("run not cancellable")

	// ErrRunClaimed indicates another worker already claimed the run.
	ErrRunClaimed = errors.New("run already claimed")

	// ErrStreamClosed indicates an event was emitted after the terminal event.
	ErrStreamClosed = errors.New("stream already terminated")

	// ErrStreamOrder indicates an event would violate the stream grammar.
	ErrStreamOrder = errors.New("event out of order")

	// ErrLLMUnavailable indicates the LLM provider is not configured.
	ErrLLMUnavailable = errors.New("LLM provider unavailable")
)
