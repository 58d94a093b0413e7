// Package notify is a small observer facility the core uses to announce
// model changes to UI collaborators without depending on them.
package notify

import "sync"

type Event string

const (
	StatsUpdated Event = "statsUpdated"
	StatsCleared Event = "statsCleared"
)

type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func New() *Notifier {
	return &Notifier{subs: make(map[int]func(Event))}
}

// Subscribe registers a callback and returns its unsubscribe function.
func (n *Notifier) Subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// Emit invokes every subscriber synchronously.
func (n *Notifier) Emit(e Event) {
	n.mu.Lock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
