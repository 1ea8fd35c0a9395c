// Package notifier publishes session lifecycle events to realtime
// subscribers. Publishing is strictly fire-and-forget: a dead redis or a
// serialization bug is logged and swallowed, never surfaced to the state
// machine that emitted the event.
package notifier

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"phishguard-backend/internal/models"
)

// RedisNotifier publishes event envelopes to the per-session redis topic
// consumed by the websocket hub.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, event models.SessionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Failed to marshal %s event for session %s: %v", event.Type, event.SessionID, err)
		return
	}

	channel := "session_updates:" + event.SessionID.String()
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("❌ Failed to publish %s event for session %s: %v", event.Type, event.SessionID, err)
	}
}

// LogNotifier is the no-redis fallback used in development. Events go to the
// process log only.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Publish(ctx context.Context, event models.SessionEvent) {
	log.Printf("🔔 [DEV EVENT] %s session=%s", event.Type, event.SessionID)
}
