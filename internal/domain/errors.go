package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	// ErrNotFound is returned when no durable record exists for a session.
	ErrNotFound = errors.New("domain: session not found")

	// ErrCorruptRecord is returned when a durable record exists but cannot
	// be decoded. Stores discard the record before returning this, so
	// callers may treat it like ErrNotFound.
	ErrCorruptRecord = errors.New("domain: corrupt session record")

	// ErrAgentInit is returned when the underlying conversational agent
	// cannot be constructed (e.g. missing credentials). Fatal per request.
	ErrAgentInit = errors.New("domain: agent initialization failed")
)
