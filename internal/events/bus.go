package events

import "sync"

// Bus is a lightweight channel-based pub/sub broker. Publish never blocks:
// a slow subscriber's events are dropped rather than stalling a worker.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]chan TradeEvent
	all    []chan TradeEvent
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan TradeEvent)}
}

// Subscribe registers a listener for one topic. The returned func removes
// the subscription and closes the channel.
func (b *Bus) Subscribe(t Topic, buffer int) (<-chan TradeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan TradeEvent, buffer)
	b.subs[t] = append(b.subs[t], ch)

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[t]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[t] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a listener for every topic (used by the journal).
func (b *Bus) SubscribeAll(buffer int) (<-chan TradeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan TradeEvent, buffer)
	b.all = append(b.all, ch)

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, c := range b.all {
			if c == ch {
				close(c)
				b.all = append(b.all[:i], b.all[i+1:]...)
				return
			}
		}
	}
}

// Publish fans the event out to topic and catch-all subscribers.
func (b *Bus) Publish(t Topic, ev TradeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	ev.Topic = t
	for _, ch := range b.subs[t] {
		select {
		case ch <- ev:
		default:
			// drop, keep the broker non-blocking
		}
	}
	for _, ch := range b.all {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, ch := range b.all {
		close(ch)
	}
	b.subs = make(map[Topic][]chan TradeEvent)
	b.all = nil
}
