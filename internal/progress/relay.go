package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisPublisher forwards events to a Redis channel so that a Relay in another
// process can hand them to its local Broadcaster.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish is best-effort: a Redis failure is logged and the event is lost.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("progress relay: failed to encode event for task %s: %v", ev.TaskName, err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.WithField("task_name", ev.TaskName).Warnf("progress relay: publish to %s failed: %v", p.channel, err)
	}
}

// Relay subscribes to a Redis channel and republishes every event locally.
type Relay struct {
	client  redis.UniversalClient
	channel string
	local   Publisher
}

func NewRelay(client redis.UniversalClient, channel string, local Publisher) *Relay {
	return &Relay{client: client, channel: channel, local: local}
}

// Run blocks until ctx is done or the subscription breaks.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to progress channel %s: %w", r.channel, err)
	}
	log.Printf("Relaying progress events from Redis channel %q", r.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("progress channel %s closed", r.channel)
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warnf("progress relay: skipping malformed event: %v", err)
				continue
			}
			// Status always follows progress.
			ev.Status = StatusFor(ev.Progress)
			r.local.Publish(ctx, ev)
		}
	}
}
