package ws

import "time"

// ConnInfo carries per-connection metadata for event publishing and logs.
// UserID stays zero until the connection joins.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
