package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/photodrop/internal/logging"
)

const defaultBuffer = 64

type op int

const (
	opShow op = iota
	opDismiss
)

type delivery struct {
	relay Relay
	op    op
	msg   Message
}

// Dispatcher hands messages to relays from a single sender goroutine, so
// deliveries to any relay keep their submission order and callers never wait.
type Dispatcher struct {
	log    logging.Logger
	onDrop func()
	queue  chan delivery
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

type DispatcherOption func(*Dispatcher)

// OnDrop registers fn to be called for every message that was not delivered.
func OnDrop(fn func()) DispatcherOption {
	return func(d *Dispatcher) { d.onDrop = fn }
}

// NewDispatcher starts the sender goroutine. buffer <= 0 selects the default.
func NewDispatcher(log logging.Logger, buffer int, opts ...DispatcherOption) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	d := &Dispatcher{
		log:    log.With("component", "notify"),
		onDrop: func() {},
		queue:  make(chan delivery, buffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Show queues msg for relay. A nil relay is ignored.
func (d *Dispatcher) Show(relay Relay, msg Message) {
	d.enqueue(delivery{relay: relay, op: opShow, msg: msg})
}

// Dismiss queues removal of the indicator with the given id.
func (d *Dispatcher) Dismiss(relay Relay, id string) {
	d.enqueue(delivery{relay: relay, op: opDismiss, msg: Message{ID: id}})
}

// Close stops intake and waits until every queued message was attempted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) enqueue(item delivery) {
	if item.relay == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn(context.Background(), "notification dropped after close", "kind", item.msg.Kind)
		d.onDrop()
		return
	}

	select {
	case d.queue <- item:
	default:
		d.log.Warn(context.Background(), "notification queue full, dropping", "kind", item.msg.Kind, "id", item.msg.ID)
		d.onDrop()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for item := range d.queue {
		if err := d.deliver(item); err != nil {
			d.log.Warn(context.Background(), "notification delivery failed", "error", err, "kind", item.msg.Kind, "id", item.msg.ID)
			d.onDrop()
		}
	}
}

func (d *Dispatcher) deliver(item delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("relay panic: %v", r)
		}
	}()

	ctx := context.Background()
	switch item.op {
	case opDismiss:
		return item.relay.Dismiss(ctx, item.msg.ID)
	default:
		return item.relay.Show(ctx, item.msg)
	}
}
