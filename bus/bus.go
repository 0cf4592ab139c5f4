// bus.go
package bus

import "sync"

// Event is what core components publish instead of logging: a topic, an
// optional payload, a monotonic timestamp, and an error code string when
// the event reports a failure.
type Event struct {
	Topic    string
	Payload  any
	TS       int64
	Err      string
	Retained bool
}

// Publisher is the narrow emit-only view handed to the sampler, storage
// writer and harness.
type Publisher interface {
	Emit(ev Event)
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic string
	ch    chan Event
	bus   *Bus
}

func (s *Subscription) Topic() string        { return s.topic }
func (s *Subscription) Events() <-chan Event { return s.ch }
func (s *Subscription) Unsubscribe()         { s.bus.unsubscribe(s) }

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Bus is a small in-process event hub. Delivery is per-topic, subscriber
// queues are bounded and drop the oldest event on overflow, and the last
// retained event per topic is replayed to late subscribers.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string][]*Subscription
	retained map[string]Event
	qLen     int
}

// New creates a bus with the given subscription queue length.
func New(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		subs:     make(map[string][]*Subscription),
		retained: make(map[string]Event),
		qLen:     queueLen,
	}
}

// Emit delivers an event to all subscribers of its topic.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[ev.Topic] {
		select {
		case sub.ch <- ev:
		default:
			// drop oldest if queue full
			<-sub.ch
			sub.ch <- ev
		}
	}

	if ev.Retained {
		b.retained[ev.Topic] = ev
	}
}

// Retained returns the last retained event for a topic, if any.
func (b *Bus) Retained(topic string) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.retained[topic]
	return ev, ok
}

// Subscribe registers a subscriber for one topic. The last retained event
// on that topic, if present, is delivered immediately.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Event, b.qLen),
		bus:   b,
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	if ev, ok := b.retained[topic]; ok {
		sub.ch <- ev
	}
	b.mu.Unlock()

	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	list := b.subs[sub.topic]
	for i, s := range list {
		if s == sub {
			b.subs[sub.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.topic]) == 0 {
		delete(b.subs, sub.topic)
	}
	b.mu.Unlock()
	close(sub.ch)
}
