package sync

import "errors"

var (
	// ErrEmptyContent rejects a compose request with nothing to send.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrUnknownMessage marks an operation on an id absent from every
	// open view.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrStaleTransition marks a status event that would move a message
	// backwards; it is ignored rather than applied.
	ErrStaleTransition = errors.New("stale status transition")
	// ErrFetchInFlight rejects a fetch while a conflicting fetch mode is
	// outstanding for the same conversation.
	ErrFetchInFlight = errors.New("conflicting fetch in flight")
	// ErrNotFailed rejects a retry for a message not in failed state.
	ErrNotFailed = errors.New("message is not in failed state")
	// ErrClosed reports use of a disposed core.
	ErrClosed = errors.New("sync core closed")
)
