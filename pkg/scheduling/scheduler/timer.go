package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/vnykmshr/asyncsched/pkg/metrics"
)

// timerEntry is one pending fire time of a ScheduledHandle.
type timerEntry struct {
	at     time.Time
	handle *ScheduledHandle
	index  int
}

// timerHeap implements a min-heap ordered by fire time.
type timerHeap []*timerEntry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Peek returns the earliest entry without removing it.
func (h timerHeap) Peek() *timerEntry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// timerQueue hands due entries to their handles from a single goroutine.
type timerQueue struct {
	mu      sync.Mutex
	pq      timerHeap
	stopped bool
	wakeup  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	registry *metrics.Registry
	name     string
}

func newTimerQueue(name string, registry *metrics.Registry) *timerQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &timerQueue{
		wakeup:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		registry: registry,
		name:     name,
	}
	heap.Init(&q.pq)
	go q.loop()
	return q
}

// add registers a fire time for h. It returns nil once the queue is stopped.
func (q *timerQueue) add(at time.Time, h *ScheduledHandle) *timerEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return nil
	}

	e := &timerEntry{at: at, handle: h}
	heap.Push(&q.pq, e)
	q.updatePending()

	if e.index == 0 {
		select {
		case q.wakeup <- struct{}{}:
		default:
		}
	}
	return e
}

// remove drops e if it has not fired yet.
func (q *timerQueue) remove(e *timerEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e.index < 0 || e.index >= len(q.pq) || q.pq[e.index] != e {
		return false
	}
	heap.Remove(&q.pq, e.index)
	q.updatePending()
	return true
}

func (q *timerQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}

// stop terminates the timer goroutine and returns the entries that never fired.
func (q *timerQueue) stop() []*timerEntry {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.cancel()
	<-q.done

	q.mu.Lock()
	defer q.mu.Unlock()
	pending := make([]*timerEntry, 0, len(q.pq))
	for len(q.pq) > 0 {
		pending = append(pending, heap.Pop(&q.pq).(*timerEntry))
	}
	q.updatePending()
	return pending
}

func (q *timerQueue) updatePending() {
	if q.registry != nil {
		q.registry.TimersPending.WithLabelValues(q.name).Set(float64(len(q.pq)))
	}
}

func (q *timerQueue) loop() {
	defer close(q.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for q.ctx.Err() == nil {
		var wait time.Duration

		q.mu.Lock()
		if e := q.pq.Peek(); e == nil {
			wait = time.Hour
		} else if wait = time.Until(e.at); wait <= 0 {
			heap.Pop(&q.pq)
			q.updatePending()
			q.mu.Unlock()

			if q.registry != nil {
				q.registry.TimersFired.WithLabelValues(q.name).Inc()
			}
			e.handle.fire()
			continue
		}
		q.mu.Unlock()

		timer.Reset(wait)

		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-q.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}
