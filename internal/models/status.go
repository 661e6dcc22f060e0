package models

// Status is the client-observed delivery state of a message. The view
// only ever moves a message forward through the ladder; the single
// backward transition is a failed send returning to sending on retry.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Rank orders the delivery ladder. Failed sits outside the ladder and
// ranks below everything acknowledged.
func (s Status) Rank() int {
	switch s {
	case StatusSending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	case StatusFailed:
		return -1
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is a legal status
// change: strictly forward along the ladder, sending may fail, and a
// failed send may go back to sending on retry.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return false
	}
	if next == StatusFailed {
		return s == StatusSending
	}
	if s == StatusFailed {
		return next == StatusSending
	}
	return next.Rank() > s.Rank()
}

// WireStatus is the status vocabulary of the delivery feed.
type WireStatus string

const (
	WireQueued    WireStatus = "queued"
	WireAccepted  WireStatus = "accepted"
	WireDelivered WireStatus = "delivered"
	WireSeen      WireStatus = "seen"
	WireRejected  WireStatus = "rejected"
)

// StatusFromWire maps a feed status onto the view's ladder. Unknown wire
// values report false and are dropped by the caller.
func StatusFromWire(w WireStatus) (Status, bool) {
	switch w {
	case WireQueued:
		return StatusSending, true
	case WireAccepted:
		return StatusSent, true
	case WireDelivered:
		return StatusDelivered, true
	case WireSeen:
		return StatusRead, true
	case WireRejected:
		return StatusFailed, true
	default:
		return "", false
	}
}
