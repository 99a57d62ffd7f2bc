package models

import "time"

// PresenceStatus is the value carried by presence change events.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "ONLINE"
	PresenceOffline PresenceStatus = "OFFLINE"
)

// PresenceEvent is broadcast on the fanout bus when a user connects or
// disconnects so every instance can notify its local clients.
type PresenceEvent struct {
	UserID    int64          `json:"user_id"`
	Status    PresenceStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// PresenceOnlineEvent builds an ONLINE transition event.
func PresenceOnlineEvent(userID int64) PresenceEvent {
	return PresenceEvent{UserID: userID, Status: PresenceOnline, Timestamp: time.Now().UTC()}
}

// PresenceOfflineEvent builds an OFFLINE transition event.
func PresenceOfflineEvent(userID int64) PresenceEvent {
	return PresenceEvent{UserID: userID, Status: PresenceOffline, Timestamp: time.Now().UTC()}
}
