//go:build darwin

package kernel

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// selector manages I/O event registration using kqueue.
type selector struct { // betteralign:ignore
	kq       int32
	eventBuf [256]unix.Kevent_t
	fds      map[int]*fdWaiters
	mu       sync.Mutex
	closed   atomic.Bool
}

func newSelector() (*selector, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &selector{
		kq:  int32(kq),
		fds: make(map[int]*fdWaiters),
	}, nil
}

func (s *selector) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return unix.Close(int(s.kq))
}

func (s *selector) SetRead(fd int, cb IOCallback) error {
	return s.set(fd, cb, true)
}

func (s *selector) SetWrite(fd int, cb IOCallback) error {
	return s.set(fd, cb, false)
}

func (s *selector) ClearRead(fd int) error {
	return s.set(fd, nil, true)
}

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

	var changed IOEvents
	var flags uint16
	if read {
		changed = EventRead
	} else {
		changed = EventWrite
	}
	if (newMask & changed) != 0 {
		flags = unix.EV_ADD | unix.EV_ENABLE
	} else {
		flags = unix.EV_DELETE
	}

	if newMask == 0 {
		delete(s.fds, fd)
	}

	kevents := eventsToKevents(fd, changed, flags)
	if len(kevents) == 0 {
		return nil
	}
	_, err := unix.Kevent(int(s.kq), kevents, nil, nil)
	return err
}

// registered reports whether fd still has any read or write callback armed.
func (s *selector) registered(fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fds[fd]
	return ok
}

func (s *selector) Poll(timeoutMs int) (int, error) {
	if s.closed.Load() {
		return 0, ErrSelectorClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(int(s.kq), nil, s.eventBuf[:], ts)
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
		kev := &s.eventBuf[i]
		fd := int(kev.Ident)
		w, ok := s.fds[fd]
		if !ok {
			continue
		}
		events := keventToEvents(kev)

		var firedFilter int16
		if kev.Filter == unix.EVFILT_READ && w.onRead != nil {
			fires = append(fires, fire{cb: w.onRead, events: events})
			w.onRead = nil
			firedFilter = unix.EVFILT_READ
		}
		if kev.Filter == unix.EVFILT_WRITE && w.onWrite != nil {
			fires = append(fires, fire{cb: w.onWrite, events: events})
			w.onWrite = nil
			firedFilter = unix.EVFILT_WRITE
		}

		if w.mask() == 0 {
			delete(s.fds, fd)
			unix.Kevent(int(s.kq), []unix.Kevent_t{{Ident: uint64(fd), Filter: firedFilter, Flags: unix.EV_DELETE}}, nil, nil)
		} else if firedFilter != 0 {
			unix.Kevent(int(s.kq), []unix.Kevent_t{{Ident: uint64(fd), Filter: firedFilter, Flags: unix.EV_DELETE}}, nil, nil)
		}
	}
	s.mu.Unlock()

	for _, f := range fires {
		f.cb(f.events)
	}
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t

	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}

	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}

	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
