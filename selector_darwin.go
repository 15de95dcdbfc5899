//go:build darwin

package eventloop

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueueSelector is the Darwin Selector implementation, simplified the same
// way as its Linux counterpart: a mutex-guarded map instead of a growable
// cache-padded slice.
type kqueueSelector struct {
	kq int

	mu  sync.Mutex
	fds map[int]InterestSet

	wake *pipeWaker

	eventBuf [128]unix.Kevent_t
}

func newSelector() (Selector, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	wake, err := newPipeWaker()
	if err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	readEvent := unix.Kevent_t{}
	unix.SetKevent(&readEvent, wake.readFD(), unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{readEvent}, nil, nil); err != nil {
		_ = wake.close()
		_ = unix.Close(kq)
		return nil, err
	}
	return &kqueueSelector{kq: kq, fds: make(map[int]InterestSet), wake: wake}, nil
}

func (s *kqueueSelector) Register(fd int, interests InterestSet) error {
	s.mu.Lock()
	s.fds[fd] = interests
	s.mu.Unlock()
	return s.apply(fd, interests, unix.EV_ADD|unix.EV_ENABLE)
}

func (s *kqueueSelector) Deregister(fd int) error {
	s.mu.Lock()
	prev := s.fds[fd]
	delete(s.fds, fd)
	s.mu.Unlock()
	return s.apply(fd, prev, unix.EV_DELETE)
}

func (s *kqueueSelector) Reregister(fd int, interests InterestSet) error {
	s.mu.Lock()
	prev := s.fds[fd]
	s.fds[fd] = interests
	s.mu.Unlock()
	if removed := prev &^ interests; removed != 0 {
		if err := s.apply(fd, removed, unix.EV_DELETE); err != nil {
			return err
		}
	}
	if added := interests &^ prev; added != 0 {
		return s.apply(fd, added, unix.EV_ADD|unix.EV_ENABLE)
	}
	return nil
}

func (s *kqueueSelector) apply(fd int, interests InterestSet, flags uint16) error {
	var changes []unix.Kevent_t
	if interests&InterestRead != 0 {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_READ, flags)
		changes = append(changes, ev)
	}
	if interests&InterestWrite != 0 {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_WRITE, flags)
		changes = append(changes, ev)
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(s.kq, changes, nil, nil)
	return err
}

func (s *kqueueSelector) Wait(strategy WaitStrategy, handler func(fd int, events IOEvents)) error {
	var timeout *unix.Timespec
	switch strategy.Mode {
	case WaitPollNow:
		timeout = &unix.Timespec{}
	case WaitBlockFor:
		ts := unix.NsecToTimespec(strategy.Timeout.Nanoseconds())
		timeout = &ts
	}
	n, err := unix.Kevent(s.kq, nil, s.eventBuf[:], timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	wakeFD := s.wake.readFD()
	byFD := make(map[int]IOEvents, n)
	for i := 0; i < n; i++ {
		ev := &s.eventBuf[i]
		fd := int(ev.Ident)
		if fd == wakeFD {
			_ = s.wake.drain()
			continue
		}
		events := byFD[fd]
		switch ev.Filter {
		case unix.EVFILT_READ:
			events |= EventReadable
		case unix.EVFILT_WRITE:
			events |= EventWritable
		}
		if ev.Flags&unix.EV_EOF != 0 {
			events |= EventHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			events |= EventError
		}
		byFD[fd] = events
	}
	for fd, events := range byFD {
		handler(fd, events)
	}
	return nil
}

func (s *kqueueSelector) Wakeup() error { return s.wake.signal() }

func (s *kqueueSelector) Close() error {
	_ = s.wake.close()
	return unix.Close(s.kq)
}
