package conversation

import "errors"

// Sentinel errors, checked with errors.Is at the HTTP boundary.
var (
	// ErrUnauthorized covers invalid/expired sessions and organization
	// scope mismatches. Surfaced to the visitor as "restart the
	// conversation", never retried silently.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means the conversation or its thread does not resolve.
	ErrNotFound = errors.New("conversation not found")

	// ErrClosed is returned for writes against a resolved conversation.
	ErrClosed = errors.New("conversation resolved")

	// ErrEmptyMessage rejects blank visitor/operator input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInvalidStatus rejects unknown status values on manual override.
	ErrInvalidStatus = errors.New("invalid status")

	ErrInvalidTrigger = errors.New("invalid transition trigger")

	// ErrAgentUnavailable wraps agent failures that happen after the
	// visitor turn persisted. The message is stored; only the reply is
	// missing.
	ErrAgentUnavailable = errors.New("agent unavailable")
)
