package eventloop

import "time"

// IOEvents is a bitmask of the readiness conditions a Selector observed for
// a single registration on one pass of Wait.
type IOEvents uint32

const (
	// EventReadable indicates the registration is ready to read.
	EventReadable IOEvents = 1 << iota
	// EventWritable indicates the registration is ready to write.
	EventWritable
	// EventError indicates the underlying descriptor reported an error
	// condition; the loop dispatches it to both the writable and the
	// readable handler, letting the channel's own I/O paths surface the
	// error.
	EventError
	// EventHangup indicates the peer closed its end.
	EventHangup
)

// WaitMode selects how a Selector's Wait call should block.
type WaitMode int

const (
	// WaitBlock blocks indefinitely until an event or Wakeup occurs.
	WaitBlock WaitMode = iota
	// WaitPollNow returns immediately, reporting whatever is already ready.
	WaitPollNow
	// WaitBlockFor blocks for at most the Strategy's Timeout.
	WaitBlockFor
)

// WaitStrategy is the blocking policy an EventLoop computes for each pass of
// its run loop from the state of its TimerQueue ("block
// indefinitely, poll without blocking, or block for a bounded duration
// derived from the queue's earliest deadline").
type WaitStrategy struct {
	Mode    WaitMode
	Timeout time.Duration // only meaningful when Mode == WaitBlockFor
}

// Block returns a strategy that waits indefinitely for readiness or wakeup.
func Block() WaitStrategy { return WaitStrategy{Mode: WaitBlock} }

// PollNow returns a strategy that never blocks.
func PollNow() WaitStrategy { return WaitStrategy{Mode: WaitPollNow} }

// BlockUntil returns a strategy that blocks for at most d, clamped to zero
// for a non-positive duration (equivalent to PollNow).
func BlockUntil(d time.Duration) WaitStrategy {
	if d <= 0 {
		return PollNow()
	}
	return WaitStrategy{Mode: WaitBlockFor, Timeout: d}
}

// Selector is the external, platform-specific readiness-notification
// collaborator an EventLoop drives its I/O dispatch through.
// Register/Deregister/Reregister/Wait are only ever called from the
// loop's own worker goroutine; Wakeup and Close may be called from any
// goroutine.
//
// A Selector implementation does not retain or inspect Channel values: it
// is handed a bare file descriptor and an interest set, and later reports
// readiness against that same file descriptor. The EventLoop is solely
// responsible for mapping a file descriptor back to the Channel that owns
// it.
type Selector interface {
	// Register begins watching fd for the given interests.
	Register(fd int, interests InterestSet) error

	// Deregister stops watching fd entirely.
	Deregister(fd int) error

	// Reregister changes the interest set previously registered for fd.
	Reregister(fd int, interests InterestSet) error

	// Wait blocks according to strategy, then invokes handler once per
	// file descriptor that reported readiness (or returns without calling
	// handler at all, if nothing became ready within strategy's bound). A
	// spurious or wakeup-only return is not an error.
	Wait(strategy WaitStrategy, handler func(fd int, events IOEvents)) error

	// Wakeup causes a concurrently blocked (or next) call to Wait to
	// return promptly. It is idempotent and safe to call from any
	// goroutine, any number of times, including when Wait is not
	// currently blocked — callers must tolerate spurious wakeups.
	Wakeup() error

	// Close releases the Selector's own resources (epoll/kqueue fd, wakeup
	// fd/pipe). It does not close any registered fd, which remain owned by
	// their Channel.
	Close() error
}
