package eventloop

import "sync/atomic"

// loopState is the EventLoop's lifecycle: a monotonic, one-way progression
// from open through closing to closed. It is simpler
// than a general run/sleep/wake state machine because this package has no
// notion of the loop "sleeping" separately from blocking in Selector.Wait —
// that distinction is folded into the run loop itself.
type loopState uint32

const (
	// loopOpen is the initial state: the loop accepts Execute, Submit,
	// ScheduleTask, and Register/Deregister/Reregister calls.
	loopOpen loopState = iota
	// loopClosing means CloseGently has been called: no new work is
	// accepted; the loop keeps running its already-queued tasks until
	// they drain, and fails every remaining timer with ErrShutdown.
	loopClosing
	// loopClosed means the run loop has returned and the Selector has been
	// closed.
	loopClosed
)

func (s loopState) String() string {
	switch s {
	case loopOpen:
		return "open"
	case loopClosing:
		return "closing"
	case loopClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// atomicLoopState is a small CAS-guarded wrapper, so open->closing->closed
// transitions are race-free without a mutex (modeled on the example
// corpus's FastState but without its sleeping/running sub-states, which
// this package has no use for).
type atomicLoopState struct {
	v atomic.Uint32
}

func (s *atomicLoopState) load() loopState {
	return loopState(s.v.Load())
}

// tryAdvance attempts the one-way transition from 'from' to 'to'.
func (s *atomicLoopState) tryAdvance(from, to loopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
