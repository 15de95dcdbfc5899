//go:build linux

package eventloop

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollSelector is the Linux Selector implementation: a plain mutex-guarded
// map in place of a fixed 65536-entry array with cache-line padding, since
// this package's Selector is consulted only from its owning loop's single
// worker goroutine for Wait/Register/Deregister/Reregister and contends
// only with Wakeup/Close from other goroutines.
type epollSelector struct {
	epfd int

	mu   sync.Mutex
	fds  map[int]InterestSet

	wake *eventfdWaker

	eventBuf [128]unix.EpollEvent
}

// newSelector constructs the platform Selector (Linux: epoll).
func newSelector() (Selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wake, err := newEventfdWaker()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	s := &epollSelector{
		epfd: epfd,
		fds:  make(map[int]InterestSet),
		wake: wake,
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wake.readFD(), &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wake.readFD()),
	}); err != nil {
		_ = wake.close()
		_ = unix.Close(epfd)
		return nil, err
	}
	return s, nil
}

func (s *epollSelector) Register(fd int, interests InterestSet) error {
	s.mu.Lock()
	s.fds[fd] = interests
	s.mu.Unlock()
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: interestsToEpoll(interests),
		Fd:     int32(fd),
	})
}

func (s *epollSelector) Deregister(fd int) error {
	s.mu.Lock()
	delete(s.fds, fd)
	s.mu.Unlock()
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (s *epollSelector) Reregister(fd int, interests InterestSet) error {
	s.mu.Lock()
	s.fds[fd] = interests
	s.mu.Unlock()
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: interestsToEpoll(interests),
		Fd:     int32(fd),
	})
}

func (s *epollSelector) Wait(strategy WaitStrategy, handler func(fd int, events IOEvents)) error {
	timeoutMs := waitTimeoutMs(strategy)
	n, err := unix.EpollWait(s.epfd, s.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	wakeFD := s.wake.readFD()
	for i := 0; i < n; i++ {
		fd := int(s.eventBuf[i].Fd)
		if fd == wakeFD {
			_ = s.wake.drain()
			continue
		}
		handler(fd, epollToIOEvents(s.eventBuf[i].Events))
	}
	return nil
}

func (s *epollSelector) Wakeup() error { return s.wake.signal() }

func (s *epollSelector) Close() error {
	_ = s.wake.close()
	return unix.Close(s.epfd)
}

func waitTimeoutMs(strategy WaitStrategy) int {
	switch strategy.Mode {
	case WaitPollNow:
		return 0
	case WaitBlockFor:
		ms := strategy.Timeout.Milliseconds()
		if ms <= 0 {
			return 0
		}
		return int(ms)
	default:
		return -1
	}
}

func interestsToEpoll(interests InterestSet) uint32 {
	var ev uint32
	if interests&InterestRead != 0 {
		ev |= unix.EPOLLIN
	}
	if interests&InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func epollToIOEvents(ev uint32) IOEvents {
	var events IOEvents
	if ev&unix.EPOLLIN != 0 {
		events |= EventReadable
	}
	if ev&unix.EPOLLOUT != 0 {
		events |= EventWritable
	}
	if ev&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if ev&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
