package changefeed

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis Pub/Sub channel carrying complaint events.
const Channel = "changes:" + TableComplaints

// RedisBroker publishes events to Redis and forwards events received from
// Redis to the local Hub, so viewers connected to any instance see every change.
type RedisBroker struct {
	Redis *redis.Client
	Hub   *Hub
}

func NewRedisBroker(rdb *redis.Client, hub *Hub) *RedisBroker {
	return &RedisBroker{Redis: rdb, Hub: hub}
}

// Publish sends evt to every instance, including this one.
func (b *RedisBroker) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.Redis.Publish(ctx, Channel, payload).Err()
}

// Listen subscribes to the channel and feeds the Hub until ctx is cancelled.
func (b *RedisBroker) Listen(ctx context.Context) error {
	pubsub := b.Redis.Subscribe(ctx, Channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed so no publish is missed after startup.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("INFO: Listening for change events on %s", Channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			evt, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				log.Printf("Error unmarshalling change event: %v", err)
				continue
			}
			if err := b.Hub.Broadcast(ctx, evt); err != nil {
				return nil
			}
		}
	}
}

// DecodeEvent parses a published event.
func DecodeEvent(data []byte) (Event, error) {
	var evt Event
	err := json.Unmarshal(data, &evt)
	return evt, err
}
