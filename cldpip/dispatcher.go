package cldpip

import (
	"cldpip/metrics"
	"context"
	"errors"
	"sync"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher is an unbounded FIFO of poll events between one producer and
// one consumer. Emit never blocks.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []Event
	closed bool

	ready chan struct{}
	done  chan struct{}

	metrics *metrics.Metrics
}

func NewDispatcher(m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		metrics: m,
	}
}

func (d *Dispatcher) signal() {
	select {
	case d.ready <- struct{}{}:
	default:
	}
}

// Emit queues e. It is a no-op once the dispatcher is closed.
func (d *Dispatcher) Emit(e Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, e)
	d.metrics.QueueDepth(len(d.queue))
	d.mu.Unlock()

	d.signal()
}

func (d *Dispatcher) pop() (Event, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return Event{}, false, d.closed
	}

	e := d.queue[0]
	d.queue[0] = Event{}
	d.queue = d.queue[1:]
	d.metrics.QueueDepth(len(d.queue))

	return e, true, d.closed
}

// Next blocks until an event is available and returns the oldest one. It
// returns ErrDispatcherClosed once the dispatcher is closed and drained.
func (d *Dispatcher) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		e, ok, closed := d.pop()
		if ok {
			return e, nil
		}
		if closed {
			return Event{}, ErrDispatcherClosed
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-d.ready:
		case <-d.done:
		}
	}
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
}

func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Supersede removes every queued AddressChanged event and returns the
// newest one. Other events keep their order.
func (d *Dispatcher) Supersede() (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		newest Event
		found  bool
	)

	kept := d.queue[:0]
	for _, e := range d.queue {
		if e.Kind == AddressChanged {
			newest, found = e, true
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(d.queue); i++ {
		d.queue[i] = Event{}
	}
	d.queue = kept
	d.metrics.QueueDepth(len(d.queue))

	return newest, found
}
