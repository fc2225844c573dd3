// Package notify dispatches change notifications to in-process subscribers.
//
// Publish never calls a subscriber while holding a lock, and a subscriber
// that publishes again from inside its callback has the new value queued
// behind the current one instead of recursing.
package notify

import "sync"

// Hub fans values of type T out to subscribers in publish order.
type Hub[T any] struct {
	mu       sync.Mutex
	subs     map[int]func(T)
	order    []int
	nextID   int
	pending  []T
	draining bool

	// Accept, when set, is consulted at delivery time. Values it rejects are
	// dropped without reaching any subscriber.
	Accept func(T) bool
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub[T]) Subscribe(fn func(T)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]func(T))
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.order = append(h.order, id)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
		for i, o := range h.order {
			if o == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
}

// Len reports the number of live subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish queues v and drains the queue unless another caller already is.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	h.pending = append(h.pending, v)
	if h.draining {
		h.mu.Unlock()
		return
	}
	h.draining = true

	for len(h.pending) > 0 {
		next := h.pending[0]
		h.pending = h.pending[1:]

		if h.Accept != nil && !h.Accept(next) {
			continue
		}

		fns := make([]func(T), 0, len(h.order))
		for _, id := range h.order {
			fns = append(fns, h.subs[id])
		}

		h.mu.Unlock()
		for _, fn := range fns {
			fn(next)
		}
		h.mu.Lock()
	}

	h.draining = false
	h.mu.Unlock()
}
