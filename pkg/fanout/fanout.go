// Package fanout implements the topic-based event publish/subscribe fabric
// used by the graph store and job coordinator to announce mutations and
// simulation results. Delivery to slow subscribers is best-effort: a full
// subscriber queue drops its oldest event rather than blocking the
// publisher.
package fanout

import (
	"sync"

	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

// Topic names recognized by the core.
const (
	TopicGraphMutation        = "graph.mutation"
	TopicSimulationStarted    = "simulation.started"
	TopicSimulationCompleted  = "simulation.completed"
	TopicSimulationFailed     = "simulation.failed"
)

// Event is an opaque payload published to a topic; subscribers type-assert
// Payload to the shape they expect for that topic.
type Event struct {
	Topic   string
	Payload interface{}
}

type subscriber struct {
	id      uint64
	ch      chan Event
	mu      sync.Mutex
	dropped uint64
	closed  bool
}

// Subscription is returned by Subscribe; callers read from Events and call
// Unsubscribe (idempotent) when done.
type Subscription struct {
	Events <-chan Event
	sub    *subscriber
	fan    *Fanout
	topic  string
}

// Dropped returns the count of events dropped for this subscription because
// its queue was full.
func (s *Subscription) Dropped() uint64 {
	s.sub.mu.Lock()
	defer s.sub.mu.Unlock()
	return s.sub.dropped
}

// Unsubscribe removes this subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.fan.unsubscribe(s.topic, s.sub)
}

// Fanout is a concurrency-safe multi-topic, multi-subscriber event bus.
type Fanout struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	queueSize   int
	nextID      uint64
	telemetry   *telemetry.Registry
}

// SetTelemetry attaches a metrics registry; published/dropped counters are
// recorded from this point forward. Safe to call with nil to detach.
func (f *Fanout) SetTelemetry(reg *telemetry.Registry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.telemetry = reg
}

// New constructs a Fanout whose per-subscriber queues hold queueSize events
// before dropping the oldest.
func New(queueSize int) *Fanout {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Fanout{subscribers: make(map[string][]*subscriber), queueSize: queueSize}
}

// Subscribe returns a stream of events published to topic from this point
// forward.
func (f *Fanout) Subscribe(topic string) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	sub := &subscriber{id: f.nextID, ch: make(chan Event, f.queueSize)}
	f.subscribers[topic] = append(f.subscribers[topic], sub)

	return &Subscription{Events: sub.ch, sub: sub, fan: f, topic: topic}
}

// Publish delivers event to every current subscriber of topic. Order is
// preserved per topic: Publish never reorders events relative to other
// Publish calls on the same topic because it holds no lock across the
// subscriber sends longer than necessary to snapshot the subscriber list,
// and each subscriber channel itself is FIFO.
func (f *Fanout) Publish(topic string, payload interface{}) {
	f.mu.RLock()
	subs := append([]*subscriber{}, f.subscribers[topic]...)
	reg := f.telemetry
	f.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	dropped := false
	for _, sub := range subs {
		if deliver(sub, ev) {
			dropped = true
		}
	}

	if reg != nil {
		reg.FanoutPublished.WithLabelValues(topic).Inc()
		if dropped {
			reg.FanoutDropped.WithLabelValues(topic).Inc()
		}
	}
}

// deliver sends ev to sub's channel, dropping the oldest queued event if
// the channel is full, and reports whether a drop occurred. The publisher
// never blocks on a slow subscriber.
func deliver(sub *subscriber, ev Event) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return false
	}
	dropped := false
	for {
		select {
		case sub.ch <- ev:
			return dropped
		default:
		}
		select {
		case <-sub.ch:
			sub.dropped++
			dropped = true
		default:
			return dropped
		}
	}
}

func (f *Fanout) unsubscribe(topic string, target *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs := f.subscribers[topic]
	for i, s := range subs {
		if s == target {
			f.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			target.mu.Lock()
			if !target.closed {
				target.closed = true
				close(target.ch)
			}
			target.mu.Unlock()
			return
		}
	}
}
