package domain

import (
	"encoding/json"
	"time"
)

// Room is a signaling room. A room has at most one host at a time; a nil
// HostClientID means the room is currently hostless and the next connect
// wins the host role.
type Room struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	HostClientID          *string         `json:"host_client_id,omitempty"`
	RouterRTPCapabilities json.RawMessage `json:"router_rtp_capabilities,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// HasHost reports whether the room currently has a host assigned.
func (r *Room) HasHost() bool {
	return r.HostClientID != nil && *r.HostClientID != ""
}

// Participant is a live member of a room. ClientID is globally unique:
// a client connecting under a different room name migrates its record.
type Participant struct {
	ClientID    string    `json:"client_id"`
	RoomID      string    `json:"room_id"`
	DisplayName string    `json:"display_name"`
	IsHost      bool      `json:"is_host"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ParticipantInfo is the roster entry sent to clients.
type ParticipantInfo struct {
	ClientID    string `json:"client_id"`
	DisplayName string `json:"display_name"`
	IsHost      bool   `json:"is_host"`
}
