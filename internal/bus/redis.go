package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Mikey786/Mediasoup/internal/domain"
	"github.com/Mikey786/Mediasoup/pkg/log"
)

const channelPattern = "signal:room:*"

// RedisConfig holds connection settings for the redis fabric.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// frame is the wire format for messages on the redis channel. Sender travels
// with the payload so every instance can apply the exclusion rule locally.
type frame struct {
	Sender  string          `json:"sender"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBus is a Bus backed by redis pub/sub so broadcasts reach sessions
// connected to other instances. Group membership stays local to each
// instance; only the messages travel.
type RedisBus struct {
	local  *LocalBus
	client *redis.Client
	sub    *redis.PubSub
	cancel context.CancelFunc
}

// NewRedisBus connects to redis and starts the fan-in subscriber.
func NewRedisBus(cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		local:  NewLocalBus(),
		client: client,
		sub:    client.PSubscribe(runCtx, channelPattern),
		cancel: cancel,
	}

	go b.run(runCtx)
	return b, nil
}

func channelFor(room string) string {
	return "signal:room:" + room
}

func (b *RedisBus) Join(room string, m Member) {
	b.local.Join(room, m)
}

func (b *RedisBus) Leave(room string, m Member) {
	b.local.Leave(room, m)
}

// Publish sends the message through redis; local delivery happens when the
// subscriber loop receives it back, same as on every other instance.
func (b *RedisBus) Publish(ctx context.Context, room, senderID string, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame{Sender: senderID, Type: msg.Type, Payload: payload})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelFor(room), data).Err()
}

func (b *RedisBus) run(ctx context.Context) {
	l := log.L()
	ch := b.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var f frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				l.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed bus frame")
				continue
			}
			room := roomFromChannel(msg.Channel)
			b.local.deliver(room, f.Sender, f.Type, f.Payload)
		}
	}
}

func roomFromChannel(channel string) string {
	const prefix = "signal:room:"
	if len(channel) > len(prefix) {
		return channel[len(prefix):]
	}
	return ""
}

func (b *RedisBus) Close() error {
	b.cancel()
	if err := b.sub.Close(); err != nil {
		return err
	}
	if err := b.local.Close(); err != nil {
		return err
	}
	return b.client.Close()
}

var _ Bus = (*RedisBus)(nil)
