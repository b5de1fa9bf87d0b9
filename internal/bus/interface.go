package bus

import (
	"context"

	"github.com/Mikey786/Mediasoup/internal/domain"
)

// Member is a session joined to a room group. ID must be unique per
// connection (not per client identity: the same client id may reconnect
// while its old session is still draining).
type Member interface {
	ID() string
	Deliver(data []byte)
}

// Bus is room-keyed group messaging. Publish delivers to every member of the
// room's group except the sender, with one exception: participantList
// messages are delivered to all members including the sender, so every
// client refreshes its roster from the same canonical publish.
type Bus interface {
	Join(room string, m Member)
	Leave(room string, m Member)
	Publish(ctx context.Context, room, senderID string, msg domain.Message) error
	Close() error
}
