package internal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
)

const clusterChannel = "scribble:strokes"

// Cluster shares strokes between hub instances over Redis pub/sub. A nil
// Cluster or one without a client publishes nothing.
type Cluster struct {
	rdb        *redis.Client
	instanceID string
	channel    string
}

func NewCluster(rdb *redis.Client, instanceID string) *Cluster {
	return &Cluster{rdb: rdb, instanceID: instanceID, channel: clusterChannel}
}

func (c *Cluster) enabled() bool {
	return c != nil && c.rdb != nil
}

// Publish announces a record received from a local peer to other instances.
func (c *Cluster) Publish(ctx context.Context, sender string, record []byte) error {
	if !c.enabled() {
		return nil
	}

	event := Event{
		Type:     EventTypeStroke,
		Instance: c.instanceID,
		Sender:   sender,
		Payload:  base64.RawURLEncoding.EncodeToString(record),
	}

	bEvent, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal cluster event: %w", err)
	}

	return c.rdb.Publish(ctx, c.channel, bEvent).Err()
}

// Subscribe relays strokes published by other instances to local peers
// until ctx is done. Events from this instance are ignored; their local
// fan-out already happened.
func (c *Cluster) Subscribe(ctx context.Context, logger *slog.Logger, hub *Hub) {
	if !c.enabled() {
		return
	}

	sub := c.rdb.Subscribe(ctx, c.channel)
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			event := Event{}
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Error("failed to unmarshal cluster event", err)
				continue
			}

			if event.Instance == c.instanceID {
				continue
			}

			switch event.Type {
			case EventTypeStroke:
				b, err := base64.RawURLEncoding.DecodeString(event.Payload)
				if err != nil {
					logger.Warn("failed to decode payload", slog.String("sender", event.Sender), slog.String("instance", event.Instance))
					continue
				}

				hub.Relay(event.Sender, b)
			default:
				logger.Warn("unknown event type", slog.String("event", string(event.Type)))
			}
		}
	}
}
