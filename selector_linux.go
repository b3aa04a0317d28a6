//go:build linux

package kernel

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// selector manages I/O event registration using epoll.
type selector struct { // betteralign:ignore
	epfd     int32
	eventBuf [256]unix.EpollEvent
	fds      map[int]*fdWaiters
	mu       sync.Mutex
	closed   atomic.Bool
}

func newSelector() (*selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &selector{
		epfd: int32(epfd),
		fds:  make(map[int]*fdWaiters),
	}, nil
}

func (s *selector) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return unix.Close(int(s.epfd))
}

// SetRead arms cb to be invoked the next time fd is readable, replacing any
// previously armed reader. Passing a nil cb is equivalent to ClearRead.
func (s *selector) SetRead(fd int, cb IOCallback) error {
	return s.set(fd, cb, true)
}

// SetWrite arms cb to be invoked the next time fd is writable.
func (s *selector) SetWrite(fd int, cb IOCallback) error {
	return s.set(fd, cb, false)
}

// ClearRead disarms the read waiter for fd, if any.
func (s *selector) ClearRead(fd int) error {
	return s.set(fd, nil, true)
}

// ClearWrite disarms the write waiter for fd, if any.
func (s *selector) ClearWrite(fd int) error {
	return s.set(fd, nil, false)
}

func (s *selector) set(fd int, cb IOCallback, read bool) error {
	if s.closed.Load() {
		return ErrSelectorClosed
	}
	if fd < 0 || fd >= maxFDLimit {
		return ErrFDOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.fds[fd]
	if !ok {
		if cb == nil {
			return nil
		}
		w = &fdWaiters{}
		s.fds[fd] = w
	}
	oldMask := w.mask()
	if read {
		w.onRead = cb
	} else {
		w.onWrite = cb
	}
	newMask := w.mask()

	if newMask == oldMask {
		return nil
	}

	if newMask == 0 {
		delete(s.fds, fd)
		return unix.EpollCtl(int(s.epfd), unix.EPOLL_CTL_DEL, fd, nil)
	}

	ev := &unix.EpollEvent{Events: eventsToEpoll(newMask), Fd: int32(fd)}
	if oldMask == 0 {
		return unix.EpollCtl(int(s.epfd), unix.EPOLL_CTL_ADD, fd, ev)
	}
	return unix.EpollCtl(int(s.epfd), unix.EPOLL_CTL_MOD, fd, ev)
}

// registered reports whether fd still has any read or write callback armed.
func (s *selector) registered(fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fds[fd]
	return ok
}

// Poll blocks for up to timeoutMs milliseconds (negative blocks
// indefinitely) and dispatches any ready callbacks inline before
// returning. Fired waiters are one-shot: they are cleared before their
// callback runs, so a callback wanting to keep watching must re-register.
func (s *selector) Poll(timeoutMs int) (int, error) {
	if s.closed.Load() {
		return 0, ErrSelectorClosed
	}

	n, err := unix.EpollWait(int(s.epfd), s.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	s.dispatch(n)
	return n, nil
}

func (s *selector) dispatch(n int) {
	type fire struct {
		cb     IOCallback
		events IOEvents
	}
	var fires []fire

	s.mu.Lock()
	for i := 0; i < n; i++ {
		fd := int(s.eventBuf[i].Fd)
		w, ok := s.fds[fd]
		if !ok {
			continue
		}
		events := epollToEvents(s.eventBuf[i].Events)

		if (events&(EventRead|EventError|EventHangup)) != 0 && w.onRead != nil {
			fires = append(fires, fire{cb: w.onRead, events: events})
			w.onRead = nil
		}
		if (events&(EventWrite|EventError|EventHangup)) != 0 && w.onWrite != nil {
			fires = append(fires, fire{cb: w.onWrite, events: events})
			w.onWrite = nil
		}

		if newMask := w.mask(); newMask == 0 {
			delete(s.fds, fd)
			unix.EpollCtl(int(s.epfd), unix.EPOLL_CTL_DEL, fd, nil)
		} else {
			ev := &unix.EpollEvent{Events: eventsToEpoll(newMask), Fd: int32(fd)}
			unix.EpollCtl(int(s.epfd), unix.EPOLL_CTL_MOD, fd, ev)
		}
	}
	s.mu.Unlock()

	for _, f := range fires {
		f.cb(f.events)
	}
}

func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
