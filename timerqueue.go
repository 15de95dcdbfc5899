package eventloop

import "container/heap"

// timerQueue is a min-heap of *ScheduledTask ordered by ReadyTime ascending,
// with a secondary identity index (ScheduledTask.heapIndex) enabling O(log n)
// removal of a specific task.
//
// timerQueue is not thread-safe by itself; every EventLoop guards its own
// queue with a single mutex, held only across enqueue/dequeue/remove, never
// across user callback execution.
type timerQueue struct {
	items []*ScheduledTask
	seq   uint64
}

// newTimerQueue returns an empty timerQueue.
func newTimerQueue() *timerQueue {
	return &timerQueue{}
}

// nextSeq returns the next insertion sequence number, for use as the
// tie-breaker when constructing a ScheduledTask.
func (q *timerQueue) nextSeq() uint64 {
	q.seq++
	return q.seq
}

// Push inserts t into the queue.
func (q *timerQueue) Push(t *ScheduledTask) {
	heap.Push((*timerQueueHeap)(q), t)
}

// Peek returns the task with the earliest ReadyTime without removing it, or
// nil if the queue is empty.
func (q *timerQueue) Peek() *ScheduledTask {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the task with the earliest ReadyTime, or nil if
// the queue is empty.
func (q *timerQueue) Pop() *ScheduledTask {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop((*timerQueueHeap)(q)).(*ScheduledTask)
}

// Remove evicts t from the queue if it is still present, reporting whether
// it was found. It is a no-op (returning false) for a task that has already
// been popped or was never pushed.
func (q *timerQueue) Remove(t *ScheduledTask) bool {
	if t.heapIndex < 0 || t.heapIndex >= len(q.items) || q.items[t.heapIndex] != t {
		return false
	}
	heap.Remove((*timerQueueHeap)(q), t.heapIndex)
	return true
}

// Len returns the number of tasks currently queued.
func (q *timerQueue) Len() int { return len(q.items) }

// timerQueueHeap adapts timerQueue to container/heap.Interface.
type timerQueueHeap timerQueue

func (h *timerQueueHeap) Len() int { return len(h.items) }

func (h *timerQueueHeap) Less(i, j int) bool { return h.items[i].Less(h.items[j]) }

func (h *timerQueueHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].heapIndex = i
	h.items[j].heapIndex = j
}

func (h *timerQueueHeap) Push(x any) {
	t := x.(*ScheduledTask)
	t.heapIndex = len(h.items)
	h.items = append(h.items, t)
}

func (h *timerQueueHeap) Pop() any {
	n := len(h.items)
	t := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	t.heapIndex = -1
	return t
}
