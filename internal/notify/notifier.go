// Package notify fans out coalesced state-change signals.
package notify

import "sync"

// Notifier wakes every subscriber when state changes. Signals coalesce:
// a subscriber that has not consumed the last signal sees only one.
type Notifier struct {
	mu   sync.Mutex
	subs []chan struct{}
}

// New creates a Notifier with no subscribers
func New() *Notifier {
	return &Notifier{}
}

// Subscribe returns a channel that receives a value after each change
func (n *Notifier) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// Notify signals all subscribers without blocking
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
