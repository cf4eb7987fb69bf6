// Package subscription reconciles local subscription display state with the
// payment processor after a checkout redirect, and broadcasts a payload-free
// change notification to any view that shows plan state.
package subscription

import "sync"

// Notifier is an explicit publish/subscribe channel for subscription-state
// changes. Events carry no payload: subscribers re-fetch state themselves.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the view deactivates; it is safe to call more than once.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
	return ch, cancel
}

// Publish notifies every subscriber. Sends never block: a subscriber that
// has not consumed the previous event keeps a single pending one, which is
// enough since events carry no payload.
func (n *Notifier) Publish() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
