package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// subscriberBuffer is how many undelivered events a subscriber may lag
// behind before further events are dropped for it.
const subscriberBuffer = 16

// Hub is an in-process Bus.
type Hub struct {
	mu     sync.RWMutex
	subs   map[Channel]map[*hubSub]struct{}
	closed bool
}

type hubSub struct {
	events chan Event
	once   sync.Once
	done   chan struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Channel]map[*hubSub]struct{})}
}

// Publish delivers to current subscribers without blocking. A subscriber
// whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, ch Channel, typ EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	ev := Event{Type: typ, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	for s := range h.subs[ch] {
		select {
		case s.events <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber on ch.
func (h *Hub) Subscribe(ctx context.Context, ch Channel) (<-chan Event, func(), error) {
	s := &hubSub{
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if h.subs[ch] == nil {
		h.subs[ch] = make(map[*hubSub]struct{})
	}
	h.subs[ch][s] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		s.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[ch], s)
			if len(h.subs[ch]) == 0 {
				delete(h.subs, ch)
			}
			h.mu.Unlock()
			close(s.done)
			close(s.events)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-s.done:
		}
	}()

	return s.events, cancel, nil
}

// Close drops every subscriber.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var all []*hubSub
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[Channel]map[*hubSub]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.once.Do(func() {
			close(s.done)
			close(s.events)
		})
	}
	return nil
}
