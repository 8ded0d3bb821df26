// Package queue implements the concurrent frame queue of spec.md §4.E:
// a blocking FIFO of inbound frames plus a separate free-list of reusable
// buffers, grounded directly on original_source/packet_queue.h's split
// between the live-list mutex and the free-list mutex (distinct locks so
// allocation and dequeue never starve each other, per spec.md §5).
package queue

import (
	"sync"

	"github.com/iangodin/dhcpdb/wire"
)

// Queue is a bounded-wait FIFO of *wire.Frame plus a free-list. The zero
// value is not usable; construct with New.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []*wire.Frame

	freeMu  sync.Mutex
	free    []*wire.Frame
	freeCap int
}

// New returns a Queue whose free-list is capped at freeCap entries (a
// small constant multiple of the worker count, per spec.md §9's note on
// bounding the free-list). A freeCap of 0 means unbounded, matching the
// original's behavior.
func New(freeCap int) *Queue {
	q := &Queue{freeCap: freeCap}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Queue enqueues p and wakes exactly one waiter.
func (q *Queue) Queue(p *wire.Frame) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
	q.cond.Signal()
}

// Wait blocks until an item is enqueued and returns it. A nil return is
// the shutdown sentinel (spec.md §4.E): the server queues exactly one
// nil per worker to shut them down.
func (q *Queue) Wait() *wire.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p
}

// Alloc pops a buffer from the free-list, allocating a fresh zeroed
// frame on miss.
func (q *Queue) Alloc() *wire.Frame {
	q.freeMu.Lock()
	defer q.freeMu.Unlock()
	if n := len(q.free); n > 0 {
		p := q.free[n-1]
		q.free = q.free[:n-1]
		return p
	}
	return wire.NewFrame()
}

// Free returns p to the free-list for reuse. If the free-list is at
// capacity, p is dropped for the garbage collector instead of retained,
// bounding steady-state memory to in-flight frames plus free-list size
// (spec.md §9).
func (q *Queue) Free(p *wire.Frame) {
	p.Reset()
	q.freeMu.Lock()
	defer q.freeMu.Unlock()
	if q.freeCap > 0 && len(q.free) >= q.freeCap {
		return
	}
	q.free = append(q.free, p)
}

// Len reports the number of frames currently queued, for tests and
// metrics; it is not part of the core contract.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
