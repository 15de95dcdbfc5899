package eventloop

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiz132/swift-nio/internal/affinity"
)

// Void is the result type of futures that carry no meaningful value, such as
// the one returned by CloseGently.
type Void = struct{}

// EventLoop is a single-threaded, I/O-multiplexing task runner: one
// goroutine, locked to one OS thread for the lifetime of its Selector use,
// drains a task queue, a TimerQueue, and Channel readiness in a single pass
// per tick.
//
// Every exported method is safe to call from any goroutine except
// Register/Deregister/Reregister, which may only be called from the loop's
// own worker goroutine (see InEventLoop).
type EventLoop struct {
	name string

	cfg      *loopConfig
	selector Selector
	metrics  *metricsRecorder

	state atomicLoopState

	workerID atomic.Uint64

	timersMu sync.Mutex
	timers   *timerQueue

	tasksMu sync.Mutex
	tasks   []func()

	channels map[int]Channel // loop-thread-only; no lock needed

	doneCh       chan struct{}
	closePromise *Promise[Void]
	closeOnce    sync.Once
}

// NewEventLoop constructs an EventLoop and starts its worker goroutine. The
// returned loop is immediately usable: Execute, Submit, and ScheduleTask may
// be called before the worker goroutine has even scheduled, since all three
// merely enqueue work the loop will pick up on its next tick.
func NewEventLoop(name string, opts ...LoopOption) (*EventLoop, error) {
	cfg := resolveLoopConfig(opts)
	selector, err := newSelector()
	if err != nil {
		return nil, fmt.Errorf("eventloop: failed to create selector: %w", err)
	}
	l := &EventLoop{
		name:     name,
		cfg:      cfg,
		selector: selector,
		metrics:  newMetricsRecorder(cfg.metricsEnabled),
		timers:   newTimerQueue(),
		channels: make(map[int]Channel),
		doneCh:   make(chan struct{}),
	}
	l.closePromise = NewPromise[Void](l)
	go l.run()
	return l, nil
}

// Name returns the loop's logical name, used in logs and worker thread
// naming. Go has no cgo-free way to set the OS thread's name, so this is
// purely a label carried through logging.
func (l *EventLoop) Name() string { return l.name }

// InEventLoop reports whether the calling goroutine is this loop's own
// worker goroutine.
func (l *EventLoop) InEventLoop() bool {
	id := l.workerID.Load()
	return id != 0 && affinity.CurrentGoroutineID() == id
}

// Metrics returns a snapshot of the loop's runtime statistics. It is always
// safe to call, but returns zero values unless WithMetrics(true) was passed
// at construction.
func (l *EventLoop) Metrics() Metrics {
	l.tasksMu.Lock()
	taskDepth := len(l.tasks)
	l.tasksMu.Unlock()

	l.timersMu.Lock()
	timerDepth := l.timers.Len()
	l.timersMu.Unlock()

	return l.metrics.snapshot(timerDepth, taskDepth)
}

// Execute enqueues task to run on the loop as soon as possible, on a future
// tick. It never blocks and never runs task synchronously, even if called
// from the loop's own worker goroutine (callback delivery
// synchronicity is a Future-specific rule, not a guarantee of Execute
// itself).
func (l *EventLoop) Execute(task func()) error {
	if task == nil {
		return nil
	}
	if l.state.load() != loopOpen {
		return ErrShutdown
	}
	l.tasksMu.Lock()
	l.tasks = append(l.tasks, task)
	l.tasksMu.Unlock()
	return l.selector.Wakeup()
}

// Submit runs task on the loop and returns a Future for its result.
//
// This is a free function, not a method, because T is a type parameter a Go
// method cannot introduce beyond the receiver's own (EventLoop has none).
func Submit[T any](loop *EventLoop, task func() (T, error)) *Future[T] {
	p := NewPromise[T](loop)
	err := loop.Execute(func() {
		v, err := safeCall(task)
		if err != nil {
			p.Fail(err)
			return
		}
		p.Succeed(v)
	})
	if err != nil {
		p.Fail(err)
	}
	return p.Future()
}

func safeCall[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return fn()
}

// Scheduled is a handle on a task queued via ScheduleTask: its eventual
// Future, and a Cancel method to withdraw it before it runs.
type Scheduled[T any] struct {
	future *Future[T]
	task   *ScheduledTask
	loop   *EventLoop
}

// Future returns the eventual result of the scheduled task.
func (s *Scheduled[T]) Future() *Future[T] { return s.future }

// Cancel withdraws the task if it is still queued, reporting whether it
// withdrew a task that had not yet run. If the task has already been popped
// from the queue for execution (even if not yet invoked), Cancel is a no-op
// that returns false: a task that has left the queue always runs to
// completion.
func (s *Scheduled[T]) Cancel() bool {
	if !s.task.cancel.fire() {
		return false
	}
	s.loop.timersMu.Lock()
	removed := s.loop.timers.Remove(s.task)
	s.loop.timersMu.Unlock()
	if removed {
		var zero T
		s.future.c.settle(zero, ErrCancelled)
	}
	return removed
}

// ScheduleTask runs task once, no sooner than delay from now, and returns a
// Scheduled handle for its eventual Future and cancellation.
//
// Free function for the same reason as Submit: T is a fresh type parameter.
func ScheduleTask[T any](loop *EventLoop, delay time.Duration, task func() (T, error)) *Scheduled[T] {
	p := NewPromise[T](loop)
	readyTime := time.Now().Add(delay)

	run := func() {
		v, err := safeCall(task)
		if err != nil {
			p.Fail(err)
			return
		}
		p.Succeed(v)
	}
	fail := func(err error) { p.Fail(err) }

	loop.timersMu.Lock()
	st := newScheduledTask(readyTime, loop.timers.nextSeq(), run, fail)
	if loop.state.load() == loopOpen {
		loop.timers.Push(st)
	}
	loop.timersMu.Unlock()

	if loop.state.load() != loopOpen {
		p.Fail(ErrShutdown)
	} else {
		_ = loop.selector.Wakeup()
	}

	return &Scheduled[T]{future: p.Future(), task: st, loop: loop}
}

// Register begins watching ch for the given interests, and
// records it so the loop can dispatch readiness back to it. Must be called
// from the loop's own worker goroutine.
func (l *EventLoop) Register(ch Channel, interests InterestSet) error {
	if !l.InEventLoop() {
		return &UnsupportedOperationError{Op: "Register (called off the owning loop's worker goroutine)"}
	}
	l.channels[ch.FD()] = ch
	return l.selector.Register(ch.FD(), interests)
}

// Deregister stops watching ch. Must be called from the loop's own worker
// goroutine.
func (l *EventLoop) Deregister(ch Channel) error {
	if !l.InEventLoop() {
		return &UnsupportedOperationError{Op: "Deregister (called off the owning loop's worker goroutine)"}
	}
	delete(l.channels, ch.FD())
	return l.selector.Deregister(ch.FD())
}

// Reregister changes the interest set previously registered for ch. Must be
// called from the loop's own worker goroutine.
func (l *EventLoop) Reregister(ch Channel, interests InterestSet) error {
	if !l.InEventLoop() {
		return &UnsupportedOperationError{Op: "Reregister (called off the owning loop's worker goroutine)"}
	}
	return l.selector.Reregister(ch.FD(), interests)
}

// CloseGently stops accepting new Execute/Submit/ScheduleTask work, lets the
// loop's already-queued Execute/Submit tasks run to completion, fails every
// still-pending ScheduleTask task with ErrShutdown instead of waiting for its
// deadline, then closes the Selector and exits the worker goroutine. The
// returned Future settles once that has happened. Calling CloseGently on a
// loop that is no longer open returns a Future failed with ErrAlreadyClosed.
func (l *EventLoop) CloseGently() *Future[Void] {
	first := false
	l.closeOnce.Do(func() {
		first = l.state.tryAdvance(loopOpen, loopClosing)
		_ = l.selector.Wakeup()
	})
	if !first {
		return NewFailedFuture[Void](l, ErrAlreadyClosed)
	}
	return l.closePromise.Future()
}

func (l *EventLoop) run() {
	l.workerID.Store(affinity.CurrentGoroutineID())
	defer l.workerID.Store(0)
	defer close(l.doneCh)

	var osThreadLocked bool
	defer func() {
		if osThreadLocked {
			runtime.UnlockOSThread()
		}
	}()

	for {
		if !osThreadLocked {
			runtime.LockOSThread()
			osThreadLocked = true
		}

		strategy := l.computeStrategy()
		if err := l.selector.Wait(strategy, l.dispatchIO); err != nil {
			l.cfg.logger.Err().Str(`loop`, l.name).Err(err).Log(`selector wait failed`)
		}

		l.drainTasks()
		l.drainTimers()

		if l.state.load() == loopClosing && l.isDrained() {
			if l.state.tryAdvance(loopClosing, loopClosed) {
				_ = l.selector.Close()
				l.closePromise.Succeed(Void{})
				return
			}
		}
	}
}

func (l *EventLoop) computeStrategy() WaitStrategy {
	if l.state.load() == loopClosing {
		// Shutting down: never block on a timer deadline. drainTimers fails
		// every remaining scheduled task immediately instead of waiting it
		// out, so there is nothing worth blocking for either way.
		return PollNow()
	}
	l.tasksMu.Lock()
	hasTasks := len(l.tasks) > 0
	l.tasksMu.Unlock()
	if hasTasks {
		return PollNow()
	}

	l.timersMu.Lock()
	next := l.timers.Peek()
	l.timersMu.Unlock()
	if next == nil {
		return Block()
	}
	return BlockUntil(time.Until(next.ReadyTime()))
}

func (l *EventLoop) isDrained() bool {
	l.tasksMu.Lock()
	tasksEmpty := len(l.tasks) == 0
	l.tasksMu.Unlock()
	l.timersMu.Lock()
	timersEmpty := l.timers.Len() == 0
	l.timersMu.Unlock()
	return tasksEmpty && timersEmpty
}

func (l *EventLoop) drainTasks() {
	l.tasksMu.Lock()
	pending := l.tasks
	l.tasks = nil
	l.tasksMu.Unlock()

	for _, task := range pending {
		l.runGuarded(task)
	}
}

func (l *EventLoop) drainTimers() {
	if l.state.load() == loopClosing {
		l.failAllTimers()
		return
	}

	now := time.Now() // single snapshot for the whole pass
	budget := l.cfg.tickBudget
	ran := 0
	for {
		if budget > 0 && ran >= budget {
			break
		}
		l.timersMu.Lock()
		next := l.timers.Peek()
		if next == nil || next.ReadyTime().After(now) {
			l.timersMu.Unlock()
			break
		}
		l.timers.Pop()
		l.timersMu.Unlock()

		l.runGuarded(next.run)
		ran++
	}
}

// failAllTimers empties the timer queue by failing every remaining task
// with ErrShutdown instead of running it, so CloseGently does not block
// waiting out a far-future deadline.
func (l *EventLoop) failAllTimers() {
	for {
		l.timersMu.Lock()
		next := l.timers.Peek()
		if next == nil {
			l.timersMu.Unlock()
			break
		}
		l.timers.Pop()
		l.timersMu.Unlock()

		l.runGuarded(func() { next.fail(ErrShutdown) })
	}
}

func (l *EventLoop) runGuarded(task func()) {
	start := time.Now()
	defer func() {
		l.metrics.record(time.Since(start))
		if r := recover(); r != nil {
			l.cfg.logger.Err().Str(`loop`, l.name).Err(panicToError(r)).Log(`recovered panic from task`)
		}
	}()
	task()
}

func (l *EventLoop) dispatchIO(fd int, events IOEvents) {
	ch, ok := l.channels[fd]
	if !ok {
		return
	}
	start := time.Now()
	if events&(EventWritable|EventError) != 0 && ch.IsOpen() {
		ch.HandleWritable()
	}
	if ch.IsOpen() && events&(EventReadable|EventError|EventHangup) != 0 {
		ch.HandleReadable()
	}
	l.metrics.record(time.Since(start))
	if !ch.IsOpen() {
		delete(l.channels, fd)
		_ = l.selector.Deregister(fd)
	}
}
