/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/httpcore/errors"
)

// kqueueReactor is the BSD/Darwin readiness implementation: one filter per
// {fd, direction}, registered independently for read and write; EV_CLEAR
// implements edge-triggering, EV_EOF on the read filter is mapped onto HUP,
// per spec.md §4.1.
type kqueueReactor struct {
	kq int

	wakeR int
	wakeW int

	mu       sync.Mutex
	handlers map[int]*registration

	timers *timers

	running int32
	stop    int32

	ioEvents    uint64
	timersFired uint64
	loops       uint64
}

type registration struct {
	flags   Flag
	handler Handler
	user    interface{}
}

// New creates the platform reactor for the current OS.
func New() (Reactor, liberr.Error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, ErrorCreateFailed.Error(err)
	}

	r, w, e := pipe2()
	if e != nil {
		_ = unix.Close(kq)
		return nil, ErrorCreateFailed.Error(e)
	}

	rx := &kqueueReactor{
		kq:       kq,
		wakeR:    r,
		wakeW:    w,
		handlers: make(map[int]*registration),
		timers:   newTimers(),
	}

	ev := unix.Kevent_t{}
	unix.SetKevent(&ev, r, unix.EVFILT_READ, unix.EV_ADD)

	if _, err = unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		_ = unix.Close(kq)
		_ = unix.Close(r)
		_ = unix.Close(w)
		return nil, ErrorCreateFailed.Error(err)
	}

	return rx, nil
}

func (r *kqueueReactor) changeList(fd int, flags Flag) []unix.Kevent_t {
	var changes []unix.Kevent_t

	edgeFlag := uint16(0)
	if flags.Has(Edge) {
		edgeFlag = unix.EV_CLEAR
	}

	if flags.Has(Read) {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_ADD|edgeFlag)
		changes = append(changes, ev)
	} else {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_DELETE)
		changes = append(changes, ev)
	}

	if flags.Has(Write) {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, fd, unix.EVFILT_WRITE, unix.EV_ADD|edgeFlag)
		changes = append(changes, ev)
	} else {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, fd, unix.EVFILT_WRITE, unix.EV_DELETE)
		changes = append(changes, ev)
	}

	return changes
}

func (r *kqueueReactor) applyChanges(changes []unix.Kevent_t) error {
	// EV_DELETE on a filter that was never added returns ENOENT; this is
	// expected whenever only one of read/write was requested, so errors
	// from this call are not surfaced to the caller.
	_, _ = unix.Kevent(r.kq, changes, nil, nil)
	return nil
}

func (r *kqueueReactor) AddFd(fd int, flags Flag, handler Handler, user interface{}) liberr.Error {
	if fd < 0 {
		return ErrorFdInvalid.Error(nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.handlers[fd]
	if ok {
		reg.flags |= flags
		reg.handler = handler
		reg.user = user
	} else {
		reg = &registration{flags: flags, handler: handler, user: user}
		r.handlers[fd] = reg
	}

	if err := r.applyChanges(r.changeList(fd, reg.flags)); err != nil {
		return ErrorPollFailed.Error(err)
	}

	return nil
}

func (r *kqueueReactor) ModifyFd(fd int, flags Flag) liberr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.handlers[fd]
	if !ok {
		return ErrorFdNotFound.Error(nil)
	}

	reg.flags = flags

	if err := r.applyChanges(r.changeList(fd, flags)); err != nil {
		return ErrorPollFailed.Error(err)
	}

	return nil
}

func (r *kqueueReactor) RemoveFd(fd int) liberr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[fd]; !ok {
		return nil
	}

	delete(r.handlers, fd)

	del1 := unix.Kevent_t{}
	unix.SetKevent(&del1, fd, unix.EVFILT_READ, unix.EV_DELETE)
	del2 := unix.Kevent_t{}
	unix.SetKevent(&del2, fd, unix.EVFILT_WRITE, unix.EV_DELETE)

	_, _ = unix.Kevent(r.kq, []unix.Kevent_t{del1, del2}, nil, nil)

	return nil
}

func (r *kqueueReactor) Poll(timeoutMs int) (int, liberr.Error) {
	if next, ok := r.timers.nextDeadline(); ok {
		until := int(time.Until(next) / time.Millisecond)
		if until < 0 {
			until = 0
		}
		if timeoutMs < 0 || until < timeoutMs {
			timeoutMs = until
		}
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(time.Millisecond))
		ts = &t
	}

	events := make([]unix.Kevent_t, 128)

	n, err := unix.Kevent(r.kq, nil, events, ts)
	atomic.AddUint64(&r.loops, 1)

	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, ErrorPollFailed.Error(err)
	}

	fired := r.timers.fireDue(time.Now())
	atomic.AddUint64(&r.timersFired, uint64(fired))

	processed := 0

	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)

		if fd == r.wakeR {
			drainWake(r.wakeR)
			continue
		}

		r.mu.Lock()
		reg, ok := r.handlers[fd]
		r.mu.Unlock()

		if !ok {
			continue
		}

		var flags Flag
		switch events[i].Filter {
		case unix.EVFILT_READ:
			flags |= Read
		case unix.EVFILT_WRITE:
			flags |= Write
		}

		if events[i].Flags&unix.EV_EOF != 0 {
			flags |= HUP
		}
		if events[i].Flags&unix.EV_ERROR != 0 {
			flags |= Error
		}

		dispatch(reg.handler, fd, flags, reg.user)
		processed++
	}

	atomic.AddUint64(&r.ioEvents, uint64(processed))

	return processed, nil
}

func (r *kqueueReactor) Run() {
	atomic.StoreInt32(&r.running, 1)
	defer atomic.StoreInt32(&r.running, 0)

	for atomic.LoadInt32(&r.stop) == 0 {
		_, _ = r.Poll(100)
	}
}

func (r *kqueueReactor) Stop() {
	atomic.StoreInt32(&r.stop, 1)
	_, _ = unix.Write(r.wakeW, []byte{0})
}

func (r *kqueueReactor) IsRunning() bool {
	return atomic.LoadInt32(&r.running) == 1
}

func (r *kqueueReactor) AddTimer(at time.Time, handler func()) uint64 {
	return r.timers.add(at, handler)
}

func (r *kqueueReactor) CancelTimer(id uint64) {
	r.timers.cancel(id)
}

func (r *kqueueReactor) Close() liberr.Error {
	_ = unix.Close(r.wakeR)
	_ = unix.Close(r.wakeW)

	if err := unix.Close(r.kq); err != nil {
		return ErrorPollFailed.Error(err)
	}

	return nil
}

func (r *kqueueReactor) Stats() Stats {
	return Stats{
		IOEvents:    atomic.LoadUint64(&r.ioEvents),
		TimersFired: atomic.LoadUint64(&r.timersFired),
		Loops:       atomic.LoadUint64(&r.loops),
	}
}

func pipe2() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}

	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}

	return fds[0], fds[1], nil
}

func drainWake(fd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// dispatch runs handler, isolating the reactor's poll loop from a panicking
// handler per spec.md §4.1 ("handler exceptions must not unwind the
// reactor").
func dispatch(handler Handler, fd int, flags Flag, user interface{}) {
	defer func() {
		_ = recover()
	}()

	if handler != nil {
		handler(fd, flags, user)
	}
}
