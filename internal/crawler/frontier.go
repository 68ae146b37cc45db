package crawler

import (
	"container/list"
	"errors"
	"sync"
)

// ErrFrontierClosed is returned by Enqueue once the frontier has been closed.
var ErrFrontierClosed = errors.New("frontier closed")

// Frontier is an unbounded multi-producer, multi-consumer queue of URLs
// awaiting fetch. It also owns the in-flight counter so that handing a URL to
// a worker and counting that worker as busy happen under one lock; the
// quiescence check in Finish relies on that.
type Frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  *list.List
	inFlight int
	closed   bool
}

// NewFrontier returns an open, empty frontier.
func NewFrontier() *Frontier {
	f := &Frontier{pending: list.New()}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Enqueue appends u without blocking. It fails with ErrFrontierClosed after
// Close or Abort.
func (f *Frontier) Enqueue(u URL) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFrontierClosed
	}
	f.pending.PushBack(u)
	f.cond.Signal()
	return nil
}

// Dequeue blocks until a URL is available or the frontier is closed with
// nothing pending, in which case it returns false. A returned URL counts as
// in flight until the caller invokes Finish.
func (f *Frontier) Dequeue() (URL, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.pending.Len() == 0 && !f.closed {
		f.cond.Wait()
	}
	front := f.pending.Front()
	if front == nil {
		return URL{}, false
	}
	f.pending.Remove(front)
	f.inFlight++
	return front.Value.(URL), true
}

// Finish marks one dequeued URL as fully processed. Every Enqueue caused by
// that URL must happen before Finish. If nothing is pending and no other URL
// is in flight the frontier closes, and Finish reports true to the one caller
// that closed it.
func (f *Frontier) Finish() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
	if f.closed || f.pending.Len() > 0 || f.inFlight > 0 {
		return false
	}
	f.closeLocked()
	return true
}

// Close closes the frontier. Pending URLs still drain; blocked dequeuers wake.
// Calling Close more than once is a no-op.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

// Abort discards every pending URL and closes the frontier. It returns the
// number of URLs discarded.
func (f *Frontier) Abort() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.pending.Len()
	f.pending.Init()
	f.closeLocked()
	return n
}

func (f *Frontier) closeLocked() {
	if f.closed {
		return
	}
	f.closed = true
	f.cond.Broadcast()
}

// Len returns the number of pending URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending.Len()
}

// InFlight returns the number of dequeued URLs not yet finished.
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Closed reports whether the frontier has been closed.
func (f *Frontier) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
