package backend

import "sync"

// listenerSet fans auth events out to subscribers. Delivery is synchronous
// in subscription order; listeners that need to do work should hand the
// event off to their own goroutine.
type listenerSet struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event)
}

func newListenerSet() *listenerSet {
	return &listenerSet{listeners: make(map[int]func(Event))}
}

func (ls *listenerSet) add(listener func(Event)) (cancel func()) {
	ls.mu.Lock()
	id := ls.nextID
	ls.nextID++
	ls.listeners[id] = listener
	ls.mu.Unlock()

	return func() {
		ls.mu.Lock()
		delete(ls.listeners, id)
		ls.mu.Unlock()
	}
}

func (ls *listenerSet) notify(event Event) {
	ls.mu.Lock()
	targets := make([]func(Event), 0, len(ls.listeners))
	for _, l := range ls.listeners {
		targets = append(targets, l)
	}
	ls.mu.Unlock()

	for _, l := range targets {
		l(event)
	}
}
