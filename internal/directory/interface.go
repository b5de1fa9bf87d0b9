package directory

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Mikey786/Mediasoup/internal/domain"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidDisplayName  = errors.New("invalid display name length (3-25 chars)")
)

// ConnectResolution is the result of resolving a connecting client.
type ConnectResolution struct {
	Room        *domain.Room
	Participant *domain.Participant
	IsHost      bool
	DisplayName string
}

// Directory owns room and participant state. It is the only component that
// mutates Room/Participant rows; all operations are atomic against the store.
type Directory interface {
	// ResolveOnConnect runs host election for a connecting client and upserts
	// its participant record. Serialized per room so two simultaneous first
	// connects cannot both win the host role.
	ResolveOnConnect(ctx context.Context, roomName, clientID string) (*ConnectResolution, error)

	// Retire deletes the participant and, if it was still the room's recorded
	// host, clears the room's host. Returns the room the participant was in
	// (nil if the participant was unknown) and whether the host left.
	Retire(ctx context.Context, clientID string) (*domain.Room, bool, error)

	// SetDisplayName validates and persists a new display name.
	SetDisplayName(ctx context.Context, clientID, name string) (*domain.Participant, error)

	// ListParticipants returns the room roster, host first, then by display
	// name ascending.
	ListParticipants(ctx context.Context, roomID string) ([]domain.ParticipantInfo, error)

	// IsHost is a point-in-time host check. Unknown clients are not hosts.
	IsHost(ctx context.Context, clientID string) (bool, error)

	// HostParticipant returns the participant record of the room's current
	// host, or ErrParticipantNotFound if the room is hostless or the record
	// is missing.
	HostParticipant(ctx context.Context, room *domain.Room) (*domain.Participant, error)

	// SaveRouterRTPCapabilities caches the SFU capability document on the room.
	SaveRouterRTPCapabilities(ctx context.Context, roomID string, caps json.RawMessage) error

	// RoomByName looks up a room by its unique name.
	RoomByName(ctx context.Context, name string) (*domain.Room, error)
}
