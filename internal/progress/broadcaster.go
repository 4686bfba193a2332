package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Sink is one live subscriber connection.
type Sink interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	ID   string
	sink Sink
}

// Broadcaster fans progress events out to every registered subscriber.
// It holds no history: subscribers only see events published after they join.
type Broadcaster struct {
	mu           sync.RWMutex
	subs         map[string]*Subscription
	writeTimeout time.Duration
}

type Option func(*Broadcaster)

// WithWriteTimeout bounds each per-subscriber send.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.writeTimeout = d
		}
	}
}

func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:         make(map[string]*Subscription),
		writeTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

var _ Publisher = (*Broadcaster)(nil)

// Subscribe registers a sink and returns its handle.
func (b *Broadcaster) Subscribe(sink Sink) *Subscription {
	sub := &Subscription{ID: uuid.NewString(), sink: sink}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	n := len(b.subs)
	b.mu.Unlock()

	log.WithField("subscriber", sub.ID).Debugf("progress subscriber connected (%d active)", n)
	return sub
}

// Unsubscribe removes a subscriber. Unknown or already removed handles are ignored.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	if b.remove(sub) {
		log.WithField("subscriber", sub.ID).Debug("progress subscriber disconnected")
	}
}

// Len reports the number of registered subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish sends ev to every subscriber registered at call time. Each send runs in
// its own goroutine so a slow or broken subscriber cannot hold up the others; Publish
// returns once every attempt has finished, which keeps events ordered per subscriber.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("progress: failed to encode event for task %s: %v", ev.TaskName, err)
		return
	}

	snapshot := b.snapshot()
	if len(snapshot) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range snapshot {
		wg.Add(1)
		go func(sub *Subscription) {
			defer wg.Done()
			b.deliver(ctx, sub, payload)
		}(sub)
	}
	wg.Wait()
}

// Close drops and closes every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.sink.Close(); err != nil {
			log.Debugf("progress: closing subscriber %s: %v", sub.ID, err)
		}
	}
}

func (b *Broadcaster) deliver(ctx context.Context, sub *Subscription, payload []byte) {
	sendCtx, cancel := context.WithTimeout(ctx, b.writeTimeout)
	defer cancel()

	if err := sub.sink.Send(sendCtx, payload); err != nil {
		log.WithField("subscriber", sub.ID).Warnf("progress: dropping unreachable subscriber: %v", err)
		if b.remove(sub) {
			sub.sink.Close()
		}
	}
}

func (b *Broadcaster) snapshot() []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		out = append(out, sub)
	}
	return out
}

func (b *Broadcaster) remove(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.ID]; !ok {
		return false
	}
	delete(b.subs, sub.ID)
	return true
}
