package events

import "context"

// RoomEvent is a room lifecycle change published for downstream consumers
// (presence, analytics). Non-critical: the signaling path never fails on a
// produce error.
type RoomEvent struct {
	Type      string `json:"type"`
	Room      string `json:"room"`
	ClientID  string `json:"client_id"`
	IsHost    bool   `json:"is_host"`
	Timestamp int64  `json:"timestamp"`
}

// Event types
const (
	EventHostElected       = "host_elected"
	EventHostLeft          = "host_left"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
)

// Producer publishes room lifecycle events.
type Producer interface {
	ProduceJoined(ctx context.Context, room, clientID string, isHost bool) error
	ProduceLeft(ctx context.Context, room, clientID string, hostLeft bool) error
	Close() error
}
