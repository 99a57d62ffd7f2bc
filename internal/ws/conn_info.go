package ws

import "time"

// ConnInfo describes one attached client connection.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	IP          string
	ConnectedAt time.Time
}
