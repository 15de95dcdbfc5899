package eventloop

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// EventLoopGroup is a fixed-size pool of EventLoops, handed out round-robin
// via Next. A group owns its loops: constructing one
// starts every underlying worker goroutine, and shutting one down closes
// all of them together.
type EventLoopGroup struct {
	loops []*EventLoop
	next  atomic.Uint64

	logger Logger
}

// NewEventLoopGroup constructs size EventLoops and starts them all.
func NewEventLoopGroup(size int, name string, opts ...GroupOption) (*EventLoopGroup, error) {
	if size <= 0 {
		size = 1
	}
	cfg := resolveGroupConfig(opts)
	g := &EventLoopGroup{logger: cfg.logger}
	for i := 0; i < size; i++ {
		loop, err := NewEventLoop(fmt.Sprintf("%s-%d", name, i), cfg.loopOptions...)
		if err != nil {
			g.closeAlreadyStarted()
			return nil, fmt.Errorf("eventloop: failed to start loop %d of group %q: %w", i, name, err)
		}
		g.loops = append(g.loops, loop)
	}
	return g, nil
}

// closeAlreadyStarted is used if construction fails partway through, to
// avoid leaking already-started worker goroutines.
func (g *EventLoopGroup) closeAlreadyStarted() {
	for _, loop := range g.loops {
		loop.CloseGently()
	}
}

// Next returns the next EventLoop in round-robin order.
func (g *EventLoopGroup) Next() *EventLoop {
	n := g.next.Add(1) - 1
	return g.loops[n%uint64(len(g.loops))]
}

// Size returns the number of loops in the group.
func (g *EventLoopGroup) Size() int { return len(g.loops) }

// Loops returns the group's underlying loops, in round-robin assignment
// order, for callers that need to address one directly (e.g. to Register a
// listening Channel on every loop).
func (g *EventLoopGroup) Loops() []*EventLoop {
	out := make([]*EventLoop, len(g.loops))
	copy(out, g.loops)
	return out
}

// countdown is a reusable N-waiter completion barrier: each of N producers
// calls done exactly once, and every goroutine blocked in wait() is released
// once the Nth call to done arrives. Generalizes a single-waiter done
// channel to an arbitrary number of loops.
type countdown struct {
	mu        sync.Mutex
	remaining int
	doneCh    chan struct{}
}

func newCountdown(n int) *countdown {
	return &countdown{remaining: n, doneCh: make(chan struct{})}
}

func (c *countdown) done() {
	c.mu.Lock()
	c.remaining--
	fire := c.remaining == 0
	c.mu.Unlock()
	if fire {
		close(c.doneCh)
	}
}

func (c *countdown) wait() <-chan struct{} { return c.doneCh }

// ShutdownGracefully closes every loop in the group gently and returns a
// Future that settles once all of them have finished draining. The future
// fails with ErrShutdownFailed if any loop's CloseGently future fails; in
// that case the failure count and the first individual failure are logged
// through the group's logger.
//
// The returned future is bound to the first loop in the group purely as an
// anchor for callback delivery; callers intending to Wait() on it should do
// so from outside any of the group's own loops, since the final callback is
// delivered off-loop.
func (g *EventLoopGroup) ShutdownGracefully() *Future[Void] {
	p := NewPromise[Void](g.loops[0])
	bar := newCountdown(len(g.loops))
	var mu sync.Mutex
	var failures []error

	for _, loop := range g.loops {
		loop := loop
		loop.CloseGently().WhenComplete(func(_ Void, err error) {
			if err != nil {
				mu.Lock()
				failures = append(failures, &ShutdownError{LoopName: loop.Name(), Cause: err})
				mu.Unlock()
			}
			bar.done()
		})
	}

	go func() {
		<-bar.wait()
		mu.Lock()
		failed := len(failures) > 0
		first := error(nil)
		if failed {
			first = failures[0]
		}
		mu.Unlock()
		if failed {
			g.logger.Err().Int(`count`, len(failures)).Err(first).Log(`group shutdown completed with failures`)
			p.Fail(ErrShutdownFailed)
			return
		}
		p.Succeed(Void{})
	}()

	return p.Future()
}

// SyncShutdownGracefully blocks the calling goroutine until every loop in
// the group has finished draining, returning the aggregated error (if any).
// It must not be called from within any of the group's own loops.
func (g *EventLoopGroup) SyncShutdownGracefully() error {
	_, err := g.ShutdownGracefully().Wait()
	return err
}
