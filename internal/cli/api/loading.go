package api

import (
	"sync"
)

// Loading is the shared "request in flight" flag used for spinners.
// It counts overlapping calls and reads false only once all of them have finished.
type Loading struct {
	mu        sync.Mutex
	inFlight  int
	observers []func(bool)
}

// Active reports whether any call is in flight
func (l *Loading) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight > 0
}

// OnChange registers fn, called with the new value whenever the flag flips
func (l *Loading) OnChange(fn func(bool)) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

func (l *Loading) start() {
	l.mu.Lock()
	l.inFlight++
	flipped := l.inFlight == 1
	observers := l.observers
	l.mu.Unlock()

	if flipped {
		notify(observers, true)
	}
}

func (l *Loading) done() {
	l.mu.Lock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	flipped := l.inFlight == 0
	observers := l.observers
	l.mu.Unlock()

	if flipped {
		notify(observers, false)
	}
}

func notify(observers []func(bool), v bool) {
	for _, fn := range observers {
		fn(v)
	}
}
