package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/dmitrijs2005/photodrop/internal/logging"
)

// ErrQueueClosed is the outcome of a task enqueued after Close.
var ErrQueueClosed = errors.New("queue closed")

// Outcome is the settled result of one task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Task is a unit of work run by a Queue.
type Task[T any] func() (T, error)

type queued[T any] struct {
	run Task[T]
	out chan Outcome[T]
}

// Queue runs tasks one at a time, in submission order, on a single worker
// goroutine. A failing or panicking task settles only its own outcome.
type Queue[T any] struct {
	log logging.Logger

	mu      sync.Mutex
	pending []queued[T]
	running bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func NewQueue[T any](log logging.Logger) *Queue[T] {
	q := &Queue[T]{
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.work()
	return q
}

// Enqueue appends task and returns a channel that receives its outcome
// exactly once. It never blocks.
func (q *Queue[T]) Enqueue(task Task[T]) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		out <- Outcome[T]{Err: ErrQueueClosed}
		return out
	}
	q.pending = append(q.pending, queued[T]{run: task, out: out})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return out
}

// Depth counts queued tasks plus the one running.
func (q *Queue[T]) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.running {
		n++
	}
	return n
}

// Close stops intake, lets the worker drain what is already queued and
// waits for it to exit.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *Queue[T]) work() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		next := q.pending[0]
		q.pending[0] = queued[T]{}
		q.pending = q.pending[1:]
		q.running = true
		q.mu.Unlock()

		v, err := q.run(next.run)

		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		next.out <- Outcome[T]{Value: v, Err: err}
	}
}

func (q *Queue[T]) run(task Task[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error(context.Background(), "task panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task()
}
