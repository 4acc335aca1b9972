package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"vidyavichar/internal/model"

	"github.com/redis/go-redis/v9"
)

const RelayChannel = "vidyavichar:events"

type relayEnvelope struct {
	Room    string          `json:"room"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay fans events out across server instances. Publish goes through Redis and
// every instance, including the publishing one, delivers to its local hub from Run.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	timeout time.Duration
}

func NewRedisRelay(client *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{
		client:  client,
		hub:     hub,
		channel: RelayChannel,
		timeout: 2 * time.Second,
	}
}

// Publish implements service.Broadcaster
func (r *RedisRelay) Publish(room string, eventType model.EventType, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: relay marshal %s payload: %v", eventType, err)
		return
	}
	data, err := json.Marshal(relayEnvelope{Room: room, Type: MessageType(eventType), Payload: raw})
	if err != nil {
		log.Printf("ws: relay marshal envelope: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		log.Printf("ws: relay publish %s to %s: %v", eventType, room, err)
	}
}

// Run delivers relayed events to the local hub until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	log.Printf("ws: relay subscribed to %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("ws: relay decode: %v", err)
				continue
			}
			r.hub.PublishRaw(env.Room, env.Type, env.Payload)
		}
	}
}
