//go:build darwin

package eventloop

import "golang.org/x/sys/unix"

// pipeWaker is the Darwin wakeup mechanism: a self-pipe, since Darwin has no
// eventfd equivalent.
type pipeWaker struct {
	readFd, writeFd int
}

func newPipeWaker() (*pipeWaker, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}
	return &pipeWaker{readFd: fds[0], writeFd: fds[1]}, nil
}

func (w *pipeWaker) readFD() int { return w.readFd }

func (w *pipeWaker) signal() error {
	_, err := unix.Write(w.writeFd, []byte{1})
	if err == unix.EAGAIN {
		// Pipe already has a pending byte: a wakeup is already queued.
		return nil
	}
	return err
}

func (w *pipeWaker) drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(w.readFd, buf[:])
		if err != nil {
			return nil
		}
	}
}

func (w *pipeWaker) close() error {
	_ = unix.Close(w.writeFd)
	return unix.Close(w.readFd)
}
