// Package reqkey implements the pending-request registry that correlates
// one outbound Need* message with the single answer that eventually
// completes it.
//
// Rust's original used a map of oneshot::Sender<T>, relying on Drop to
// wake a waiter with nothing when the sender side went away. Go has no
// equivalent destructor hook, so completion is modeled with a
// capacity-1 channel per key and abandonment is an explicit operation:
// the input dispatcher calls AbandonAllWithDefault once, when its read
// loop ends, to guarantee every still-outstanding waiter is unblocked
// with a type-appropriate default rather than left hanging forever.
package reqkey

import "fmt"

// Registry correlates keys of type K with single-shot answers of type V.
// Safe for concurrent use.
type Registry[K comparable, V any] struct {
	mu      chan struct{} // binary mutex; zero value must not be used, see New
	pending map[K]chan V
}

// New returns an empty Registry ready for use.
func New[K comparable, V any]() *Registry[K, V] {
	r := &Registry[K, V]{
		mu:      make(chan struct{}, 1),
		pending: make(map[K]chan V),
	}
	r.mu <- struct{}{}
	return r
}

func (r *Registry[K, V]) lock()   { <-r.mu }
func (r *Registry[K, V]) unlock() { r.mu <- struct{}{} }

// Insert registers key as outstanding and returns the channel its
// eventual answer will arrive on. Inserting a key that is already
// outstanding is a programming error — the (thread_id, event_id) pair
// is supposed to be unique among concurrently pending requests — so
// Insert panics rather than silently overwriting the earlier waiter.
func (r *Registry[K, V]) Insert(key K) <-chan V {
	r.lock()
	defer r.unlock()

	if _, exists := r.pending[key]; exists {
		panic(fmt.Sprintf("reqkey: duplicate insert for key %v", key))
	}
	ch := make(chan V, 1)
	r.pending[key] = ch
	return ch
}

// Deliver completes the pending request for key with value, removing it
// from the registry. It reports whether a matching pending request was
// found; delivering to an unknown or already-completed key is a no-op
// that returns false rather than an error, since a late or duplicate
// answer from the parent is not a fatal condition for the worker.
func (r *Registry[K, V]) Deliver(key K, value V) bool {
	r.lock()
	defer r.unlock()

	ch, ok := r.pending[key]
	if !ok {
		return false
	}
	delete(r.pending, key)
	ch <- value
	return true
}

// Abandon removes key from the registry without completing it. Used
// when a request is known to no longer matter (e.g. its owning thread
// shut down) but the registry as a whole is staying alive.
func (r *Registry[K, V]) Abandon(key K) {
	r.lock()
	defer r.unlock()
	delete(r.pending, key)
}

// AbandonAllWithDefault completes every currently pending request with
// value and clears the registry, reporting how many were completed.
// This is the mechanism behind the "default-on-cancel" guarantee: once
// the parent's stdin closes or a fatal inbound error arrives, the input
// dispatcher calls this once per registry so no agent thread is left
// blocked waiting on an answer that will never come.
func (r *Registry[K, V]) AbandonAllWithDefault(value V) int {
	r.lock()
	defer r.unlock()

	n := len(r.pending)
	for key, ch := range r.pending {
		ch <- value
		delete(r.pending, key)
	}
	return n
}

// Len reports the number of currently outstanding requests. Intended
// for tests and diagnostics, not for control flow.
func (r *Registry[K, V]) Len() int {
	r.lock()
	defer r.unlock()
	return len(r.pending)
}
