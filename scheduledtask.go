package eventloop

import (
	"sync"
	"time"
)

// ScheduledTask is an immutable record of a callable, its failure callback,
// and the absolute (monotonic) deadline at which the callable becomes
// eligible to run.
//
// Two ScheduledTasks with identical deadlines are distinct: equality is
// identity, never structural. A ScheduledTask is owned by
// exactly one TimerQueue at a time; heapIndex tracks its position there so
// TimerQueue.Remove can locate and evict it in O(log n) without a linear
// scan, and is meaningless (and ignored) while the task is not queued.
type ScheduledTask struct {
	run       func()
	fail      func(error)
	readyTime time.Time
	seq       uint64

	heapIndex int
	cancel    cancelSignal
}

// newScheduledTask constructs a ScheduledTask ready for insertion into a
// TimerQueue. seq is the queue's insertion sequence number, used only to
// break ties between equal readyTime values deterministically.
func newScheduledTask(readyTime time.Time, seq uint64, run func(), fail func(error)) *ScheduledTask {
	return &ScheduledTask{
		run:       run,
		fail:      fail,
		readyTime: readyTime,
		seq:       seq,
		heapIndex: -1,
	}
}

// ReadyTime returns the absolute deadline at or after which the task becomes
// eligible to run.
func (t *ScheduledTask) ReadyTime() time.Time { return t.readyTime }

// Less reports whether t is ordered before o: strictly by readyTime, with
// insertion sequence as the stable tie-breaker.
func (t *ScheduledTask) Less(o *ScheduledTask) bool {
	if t.readyTime.Equal(o.readyTime) {
		return t.seq < o.seq
	}
	return t.readyTime.Before(o.readyTime)
}

// cancelSignal is a single-fire, mutex-guarded cancellation flag with a
// small callback list, modeled on a W3C AbortSignal but scoped to exactly
// the one consumer a ScheduledTask needs: "was this task cancelled, and if
// so let the TimerQueue know it should be evicted."
type cancelSignal struct {
	mu        sync.Mutex
	cancelled bool
	onCancel  []func()
}

// fire marks the signal cancelled and invokes any registered callbacks
// exactly once. Returns false if the signal was already fired.
func (c *cancelSignal) fire() bool {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return false
	}
	c.cancelled = true
	cbs := c.onCancel
	c.onCancel = nil
	c.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
	return true
}

// isCancelled reports whether the signal has already fired.
func (c *cancelSignal) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}
