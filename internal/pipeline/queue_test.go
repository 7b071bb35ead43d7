package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsInSubmissionOrder(t *testing.T) {
	q := NewQueue[int](logging.Nop())
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var outs []<-chan Outcome[int]
	for i := 0; i < 5; i++ {
		i := i
		outs = append(outs, q.Enqueue(func() (int, error) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i * 10, nil
		}))
	}

	for i, out := range outs {
		o := <-out
		require.NoError(t, o.Err)
		assert.Equal(t, i*10, o.Value)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueue_NeverOverlaps(t *testing.T) {
	q := NewQueue[struct{}](logging.Nop())
	defer q.Close()

	var mu sync.Mutex
	active, maxActive := 0, 0
	task := func() (struct{}, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return struct{}{}, nil
	}

	var outs []<-chan Outcome[struct{}]
	for i := 0; i < 10; i++ {
		outs = append(outs, q.Enqueue(task))
	}
	for _, out := range outs {
		<-out
	}
	assert.Equal(t, 1, maxActive)
}

func TestQueue_FailureAndPanicAreIsolated(t *testing.T) {
	q := NewQueue[string](logging.Nop())
	defer q.Close()

	boom := errors.New("boom")
	first := q.Enqueue(func() (string, error) { return "", boom })
	second := q.Enqueue(func() (string, error) { panic("kaboom") })
	third := q.Enqueue(func() (string, error) { return "ok", nil })

	o := <-first
	assert.ErrorIs(t, o.Err, boom)

	o = <-second
	require.Error(t, o.Err)
	assert.Contains(t, o.Err.Error(), "task panic: kaboom")

	o = <-third
	require.NoError(t, o.Err)
	assert.Equal(t, "ok", o.Value)
}

func TestQueue_CloseDrainsAndRejects(t *testing.T) {
	q := NewQueue[int](logging.Nop())

	release := make(chan struct{})
	first := q.Enqueue(func() (int, error) {
		<-release
		return 1, nil
	})
	second := q.Enqueue(func() (int, error) { return 2, nil })
	assert.Equal(t, 2, q.Depth())

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before queued tasks finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-closed

	assert.Equal(t, 1, (<-first).Value)
	assert.Equal(t, 2, (<-second).Value)
	assert.Equal(t, 0, q.Depth())

	o := <-q.Enqueue(func() (int, error) { return 3, nil })
	assert.ErrorIs(t, o.Err, ErrQueueClosed)
}
