package eventloop

import (
	"sync"
	"sync/atomic"
)

// settleState is the lifecycle of a cell: pending, then irreversibly
// fulfilled or failed. The transition out of pending happens at most once.
type settleState int32

const (
	statePending settleState = iota
	stateFulfilled
	stateFailed
)

// cell is the single-assignment result storage shared by a Promise[T] and
// its Future[T]. Resolving an already-settled cell is silently ignored
// rather than panicking; double-settle is treated as a harmless race
// between whichever caller got there first, not a programmer error.
type cell[T any] struct {
	loop  *EventLoop
	state atomic.Int32

	mu        sync.Mutex
	value     T
	err       error
	callbacks []func(T, error) // append-only; detached (nil'd) at settle time

	done chan struct{} // closed exactly once, on settle
}

func newCell[T any](loop *EventLoop) *cell[T] {
	return &cell[T]{loop: loop, done: make(chan struct{})}
}

// settle performs the one-way pending -> fulfilled/failed transition. It
// returns false if the cell was already settled.
func (c *cell[T]) settle(value T, err error) bool {
	if !c.state.CompareAndSwap(int32(statePending), int32(pickState(err))) {
		return false
	}
	c.mu.Lock()
	c.value, c.err = value, err
	cbs := c.callbacks
	c.callbacks = nil // detach: breaks any cross-cascade retention cycle
	c.mu.Unlock()
	close(c.done)
	for _, cb := range cbs {
		c.deliver(cb)
	}
	return true
}

func pickState(err error) settleState {
	if err != nil {
		return stateFailed
	}
	return stateFulfilled
}

// snapshot returns the settled value/error and whether the cell is settled.
func (c *cell[T]) snapshot() (value T, err error, settled bool) {
	if settleState(c.state.Load()) == statePending {
		return value, nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.err, true
}

// onSettle registers cb for delivery once the cell settles. Callbacks
// registered before settlement fire in registration order; a callback
// registered after settlement fires immediately, under the same delivery
// rule.
func (c *cell[T]) onSettle(cb func(T, error)) {
	c.mu.Lock()
	if settleState(c.state.Load()) == statePending {
		c.callbacks = append(c.callbacks, cb)
		c.mu.Unlock()
		return
	}
	value, err := c.value, c.err
	c.mu.Unlock()
	c.deliver(func(T, error) { cb(value, err) })
}

// deliver runs cb (already bound to its value/err) on the cell's loop: if
// the current goroutine is already the loop's worker, it runs synchronously
// in the current tick; otherwise it is submitted as an immediate task. If
// the loop is no longer accepting work (Execute returns an error because it
// is closing or closed), cb still must run exactly once, so it is invoked
// directly on the calling goroutine instead of being silently dropped.
func (c *cell[T]) deliver(cb func(T, error)) {
	value, err := c.value, c.err
	run := func() { cb(value, err) }
	if c.loop.InEventLoop() {
		run()
		return
	}
	if execErr := c.loop.Execute(run); execErr != nil {
		run()
	}
}

// wait blocks the calling goroutine until the cell settles. It must not be
// called from the bound loop's own worker goroutine, where it would
// deadlock forever waiting on a resolution that can only be delivered by
// that same goroutine.
func (c *cell[T]) wait() (T, error) {
	var zero T
	if c.loop.InEventLoop() {
		return zero, ErrReentrantWait
	}
	<-c.done
	value, err, _ := c.snapshot()
	return value, err
}

// Promise is a single-assignment cell bound to one EventLoop. It produces
// exactly one of (value, error); a Promise's bound loop never changes
// after construction.
type Promise[T any] struct {
	c *cell[T]
}

// NewPromise creates a new, pending Promise bound to loop.
//
// Go methods cannot introduce a new type parameter beyond their receiver's,
// so this is a package-level generic function rather than a method on
// EventLoop (see DESIGN.md).
func NewPromise[T any](loop *EventLoop) *Promise[T] {
	return &Promise[T]{c: newCell[T](loop)}
}

// Succeed resolves the promise with value. Returns false if the promise was
// already settled, in which case the call is a silent no-op.
func (p *Promise[T]) Succeed(value T) bool {
	var zeroErr error
	return p.c.settle(value, zeroErr)
}

// Fail resolves the promise with err. Returns false if the promise was
// already settled.
func (p *Promise[T]) Fail(err error) bool {
	var zero T
	return p.c.settle(zero, err)
}

// Future returns the read-side handle over this promise's cell.
func (p *Promise[T]) Future() *Future[T] {
	return &Future[T]{c: p.c}
}

// Future is a read-only, subscribable view over a Promise's result (design
// spec §4.1). All callbacks registered on a Future execute on its bound
// loop, per the delivery rule in cell.deliver.
type Future[T any] struct {
	c *cell[T]
}

// NewSucceededFuture returns a Future already settled with value, bound to
// loop. See NewPromise for why this is a free function rather than a
// method.
func NewSucceededFuture[T any](loop *EventLoop, value T) *Future[T] {
	c := newCell[T](loop)
	c.settle(value, nil)
	return &Future[T]{c: c}
}

// NewFailedFuture returns a Future already settled with err, bound to loop.
func NewFailedFuture[T any](loop *EventLoop, err error) *Future[T] {
	c := newCell[T](loop)
	var zero T
	c.settle(zero, err)
	return &Future[T]{c: c}
}

// IsDone reports whether the future has settled (succeeded or failed).
func (f *Future[T]) IsDone() bool {
	return settleState(f.c.state.Load()) != statePending
}

// WhenSuccess registers cb to run with the fulfilled value, if and when the
// future succeeds. It is never invoked on failure.
func (f *Future[T]) WhenSuccess(cb func(T)) *Future[T] {
	f.c.onSettle(func(v T, err error) {
		if err == nil {
			cb(v)
		}
	})
	return f
}

// WhenFailure registers cb to run with the failure reason, if and when the
// future fails. It is never invoked on success.
func (f *Future[T]) WhenFailure(cb func(error)) *Future[T] {
	f.c.onSettle(func(_ T, err error) {
		if err != nil {
			cb(err)
		}
	})
	return f
}

// WhenComplete registers cb to run with the eventual outcome, success or
// failure, exactly once.
func (f *Future[T]) WhenComplete(cb func(T, error)) *Future[T] {
	f.c.onSettle(cb)
	return f
}

// Wait blocks the calling goroutine until the future settles and returns its
// outcome. It is intended for use off-loop, at shutdown boundaries only
// — calling it from the bound loop's own worker
// goroutine returns ErrReentrantWait instead of deadlocking.
func (f *Future[T]) Wait() (T, error) {
	return f.c.wait()
}

// Cascade fulfills target with this future's eventual outcome, forwarding
// both success and failure without trapping errors (unlike Map/FlatMap,
// whose whole point is to trap a callback's panic/error into the derived
// future).
func (f *Future[T]) Cascade(target *Promise[T]) *Future[T] {
	f.c.onSettle(func(v T, err error) {
		if err != nil {
			target.Fail(err)
		} else {
			target.Succeed(v)
		}
	})
	return f
}

// And returns a Future that resolves once both f and other have resolved
// successfully, yielding a pair of their values; it fails with whichever of
// the two failures is observed first.
func (f *Future[T]) And(other *Future[T]) *Future[[2]T] {
	p := NewPromise[[2]T](f.c.loop)
	var mu sync.Mutex
	var pair [2]T
	remaining := 2
	failed := false

	settle := func(idx int, v T, err error) {
		mu.Lock()
		defer mu.Unlock()
		if failed {
			return
		}
		if err != nil {
			failed = true
			p.Fail(err)
			return
		}
		pair[idx] = v
		remaining--
		if remaining == 0 {
			p.Succeed(pair)
		}
	}
	f.c.onSettle(func(v T, err error) { settle(0, v, err) })
	other.c.onSettle(func(v T, err error) { settle(1, v, err) })
	return p.Future()
}

// Map returns a Future derived from f by applying fn to its successful
// value. A failure of f, or an error returned by fn, becomes the failure of
// the derived future; fn is never called after f fails, and fn's error is
// trapped rather than propagated as a panic.
//
// This is a free function, not a method, because fn's result type U is a
// second type parameter a Go method cannot introduce.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	p := NewPromise[U](f.c.loop)
	f.c.onSettle(func(v T, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		mapped, mapErr := safeMap(fn, v)
		if mapErr != nil {
			p.Fail(mapErr)
			return
		}
		p.Succeed(mapped)
	})
	return p.Future()
}

func safeMap[T, U any](fn func(T) (U, error), v T) (u U, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return fn(v)
}

// FlatMap returns a Future derived from f by applying fn to its successful
// value and unwrapping the Future fn returns, so chained asynchronous steps
// don't nest (Future[Future[U]] collapses to Future[U]).
func FlatMap[T, U any](f *Future[T], fn func(T) (*Future[U], error)) *Future[U] {
	p := NewPromise[U](f.c.loop)
	f.c.onSettle(func(v T, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		next, mapErr := safeFlatMap(fn, v)
		if mapErr != nil {
			p.Fail(mapErr)
			return
		}
		next.Cascade(p)
	})
	return p.Future()
}

func safeFlatMap[T, U any](fn func(T) (*Future[U], error), v T) (next *Future[U], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return fn(v)
}

// AndAll returns a Future resolving once every future in the list has
// resolved successfully, yielding their values in input order; it fails
// with the first failure observed, while still waiting for (and discarding
// the outcome of) every remaining input so no goroutine or callback leaks.
func AndAll[T any](futures []*Future[T]) *Future[[]T] {
	if len(futures) == 0 {
		panic("eventloop: AndAll requires at least one future")
	}
	p := NewPromise[[]T](futures[0].c.loop)

	results := make([]T, len(futures))
	var mu sync.Mutex
	remaining := len(futures)
	var failed bool

	for i, fut := range futures {
		i := i
		fut.c.onSettle(func(v T, err error) {
			mu.Lock()
			defer mu.Unlock()
			if failed {
				remaining--
				return
			}
			if err != nil {
				failed = true
				p.Fail(err)
				remaining--
				return
			}
			results[i] = v
			remaining--
			if remaining == 0 {
				p.Succeed(append([]T(nil), results...))
			}
		})
	}
	return p.Future()
}
