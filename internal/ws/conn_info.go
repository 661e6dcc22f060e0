package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo is the bookkeeping the hub keeps per snapshot subscriber,
// mostly for the error events published when a write fails.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
