package notify

import (
	"context"
	"sync"
)

// Event is one call observed by a Recorder.
type Event struct {
	Dismiss bool
	Message Message
}

// Recorder is an in-memory Relay. ShowErr and DismissErr, when set, are
// returned from every call after the event is recorded.
type Recorder struct {
	ShowErr    error
	DismissErr error

	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Show(_ context.Context, msg Message) error {
	r.mu.Lock()
	r.events = append(r.events, Event{Message: msg})
	r.mu.Unlock()
	return r.ShowErr
}

func (r *Recorder) Dismiss(_ context.Context, id string) error {
	r.mu.Lock()
	r.events = append(r.events, Event{Dismiss: true, Message: Message{ID: id}})
	r.mu.Unlock()
	return r.DismissErr
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many Show calls carried the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if !e.Dismiss && e.Message.Kind == kind {
			n++
		}
	}
	return n
}
