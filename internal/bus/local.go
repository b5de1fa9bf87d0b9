package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Mikey786/Mediasoup/internal/domain"
)

// LocalBus is an in-process Bus. It serves single-instance deployments and
// tests, and acts as the delivery fan-out for RedisBus.
type LocalBus struct {
	rooms map[string]map[string]Member
	mu    sync.RWMutex
}

// NewLocalBus creates a new in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{
		rooms: make(map[string]map[string]Member),
	}
}

func (b *LocalBus) Join(room string, m Member) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.rooms[room]; !ok {
		b.rooms[room] = make(map[string]Member)
	}
	b.rooms[room][m.ID()] = m
}

func (b *LocalBus) Leave(room string, m Member) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if members, ok := b.rooms[room]; ok {
		delete(members, m.ID())
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
}

func (b *LocalBus) Publish(ctx context.Context, room, senderID string, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b.deliver(room, senderID, msg.Type, data)
	return nil
}

// deliver fans a marshaled message out to the room's local members,
// applying the sender-exclusion rule.
func (b *LocalBus) deliver(room, senderID, msgType string, data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	members, ok := b.rooms[room]
	if !ok {
		return
	}
	for id, m := range members {
		if id == senderID && msgType != domain.MsgTypeParticipantList {
			continue
		}
		m.Deliver(data)
	}
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = make(map[string]map[string]Member)
	return nil
}

var _ Bus = (*LocalBus)(nil)
