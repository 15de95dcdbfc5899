//go:build linux

package eventloop

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// eventfdWaker is the Linux wakeup mechanism: a single eventfd serving as
// both read and write end.
type eventfdWaker struct {
	fd int
}

func newEventfdWaker() (*eventfdWaker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &eventfdWaker{fd: fd}, nil
}

func (w *eventfdWaker) readFD() int { return w.fd }

// signal increments the eventfd counter by one, waking any blocked epoll_wait.
func (w *eventfdWaker) signal() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	if err == unix.EAGAIN {
		// Counter already non-zero (a wakeup is already pending): fine.
		return nil
	}
	return err
}

// drain resets the eventfd counter to zero.
func (w *eventfdWaker) drain() error {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			return nil
		}
	}
}

func (w *eventfdWaker) close() error {
	return unix.Close(w.fd)
}
