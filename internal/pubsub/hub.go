// Package pubsub fans out the latest value per key to subscribers.
package pubsub

import "sync"

// Hub delivers values published under a key to that key's subscribers.
// Each subscriber channel holds at most one pending value; a slow reader
// only ever sees the newest one.
type Hub[K comparable, V any] struct {
	mu   sync.Mutex
	subs map[K]map[chan V]struct{}
}

func NewHub[K comparable, V any]() *Hub[K, V] {
	return &Hub[K, V]{subs: make(map[K]map[chan V]struct{})}
}

// Subscribe registers a subscriber for key. When initial reports ok, its value is
// queued before any later publish. The caller must invoke the returned cancel
// function; it closes the channel and is safe to call more than once.
func (h *Hub[K, V]) Subscribe(key K, initial func() (V, bool)) (<-chan V, func()) {
	ch := make(chan V, 1)

	h.mu.Lock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[chan V]struct{})
		h.subs[key] = set
	}
	set[ch] = struct{}{}
	if initial != nil {
		if v, ok := initial(); ok {
			ch <- v
		}
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set, ok := h.subs[key]
		if !ok {
			return
		}
		if _, ok := set[ch]; !ok {
			return
		}
		delete(set, ch)
		close(ch)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
	return ch, cancel
}

// Publish replaces any pending value of every subscriber of key with v.
func (h *Hub[K, V]) Publish(key K, v V) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[key] {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Subscribers returns how many subscribers key has.
func (h *Hub[K, V]) Subscribers(key K) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}
