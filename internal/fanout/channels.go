package fanout

import (
	"strconv"
	"strings"
)

// Channel naming is a fixed function of the room id plus one reserved
// presence channel, so any instance can derive a destination without a
// lookup table.
const (
	roomChannelPrefix  = "chat:room:"
	RoomChannelPattern = "chat:room:*"
	PresenceChannel    = "chat:presence"
)

// RoomChannel returns the pub/sub channel carrying one room's live messages.
func RoomChannel(roomID int64) string {
	return roomChannelPrefix + strconv.FormatInt(roomID, 10)
}

// RoomIDFromChannel recovers the room id from a channel name.
func RoomIDFromChannel(channel string) (int64, bool) {
	raw, ok := strings.CutPrefix(channel, roomChannelPrefix)
	if !ok {
		return 0, false
	}
	roomID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return roomID, true
}
