//go:build windows

package eventloop

import "time"

// windowsSelector is a stub: this package's epoll/kqueue-shaped Selector has
// no IOCP equivalent here. Register, Deregister, Reregister, and a Wait with
// the WaitBlock strategy return a clear UnsupportedOperationError rather than
// attempting a partial IOCP port; a Wait with any other strategy returns nil,
// and Wakeup and Close are no-ops. A loop on Windows can still run timers and
// Execute/Submit/ScheduleTask.
type windowsSelector struct{}

func newSelector() (Selector, error) {
	return &windowsSelector{}, nil
}

func (windowsSelector) Register(int, InterestSet) error { return unsupported("Selector.Register") }

func (windowsSelector) Deregister(int) error { return unsupported("Selector.Deregister") }

func (windowsSelector) Reregister(int, InterestSet) error {
	return unsupported("Selector.Reregister")
}

func (windowsSelector) Wait(strategy WaitStrategy, _ func(fd int, events IOEvents)) error {
	switch strategy.Mode {
	case WaitBlock:
		return unsupported("Selector.Wait")
	case WaitBlockFor:
		// No registered descriptors can ever become ready; degrade to a
		// timed sleep so a loop still runs its timers on Windows.
		time.Sleep(strategy.Timeout)
	}
	return nil
}

func (windowsSelector) Wakeup() error { return nil }

func (windowsSelector) Close() error { return nil }
