package relay

import "sync"

// Topic is a minimal typed publish/subscribe fan-out: one Topic per event
// kind, each supporting multiple independent subscribers with individual
// unsubscribe handles. There is no buffering or replay — a subscriber
// registered after an event was published never sees it.
//
// Safe for concurrent use. Publish snapshots the subscriber list under the
// lock and invokes handlers outside it, so handlers may subscribe or
// unsubscribe without deadlocking.
type Topic[T any] struct {
	mu     sync.Mutex
	nextID int
	order  []int
	subs   map[int]func(T)
}

// NewTopic returns an empty Topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn and returns its unsubscribe function. Every
// subscriber receives every event independently (not competing consumers).
// The returned function is idempotent and removes only this subscription.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.order = append(t.order, id)
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subs[id]; !ok {
			return
		}
		delete(t.subs, id)
		for i, v := range t.order {
			if v == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers v synchronously to every currently registered subscriber
// in registration order.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	handlers := make([]func(T), 0, len(t.order))
	for _, id := range t.order {
		if fn, ok := t.subs[id]; ok {
			handlers = append(handlers, fn)
		}
	}
	t.mu.Unlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// Len returns the current subscriber count.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
