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

//go:build linux

package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/httpcore/errors"
)

// epollReactor is the Linux readiness implementation: one epoll descriptor
// per fd with combined flags, EPOLLET for edge-triggering, EPOLLRDHUP
// mapped onto HUP, per spec.md §4.1.
type epollReactor struct {
	epfd int

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
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrorCreateFailed.Error(err)
	}

	r, w, e := pipe2()
	if e != nil {
		_ = unix.Close(epfd)
		return nil, ErrorCreateFailed.Error(e)
	}

	rx := &epollReactor{
		epfd:     epfd,
		wakeR:    r,
		wakeW:    w,
		handlers: make(map[int]*registration),
		timers:   newTimers(),
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(r)}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, r, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(r)
		_ = unix.Close(w)
		return nil, ErrorCreateFailed.Error(err)
	}

	return rx, nil
}

func toEpollEvents(f Flag) uint32 {
	var ev uint32

	if f.Has(Read) {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if f.Has(Write) {
		ev |= unix.EPOLLOUT
	}
	if f.Has(Edge) {
		ev |= unix.EPOLLET
	}

	return ev
}

func fromEpollEvents(ev uint32) Flag {
	var f Flag

	if ev&unix.EPOLLIN != 0 {
		f |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		f |= Write
	}
	if ev&(unix.EPOLLERR) != 0 {
		f |= Error
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		f |= HUP
	}

	return f
}

func (r *epollReactor) AddFd(fd int, flags Flag, handler Handler, user interface{}) liberr.Error {
	if fd < 0 {
		return ErrorFdInvalid.Error(nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.handlers[fd]; ok {
		reg.flags |= flags
		reg.handler = handler
		reg.user = user

		ev := unix.EpollEvent{Events: toEpollEvents(reg.flags), Fd: int32(fd)}
		if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
			return ErrorPollFailed.Error(err)
		}

		return nil
	}

	reg := &registration{flags: flags, handler: handler, user: user}
	ev := unix.EpollEvent{Events: toEpollEvents(flags), Fd: int32(fd)}

	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return ErrorPollFailed.Error(err)
	}

	r.handlers[fd] = reg

	return nil
}

func (r *epollReactor) ModifyFd(fd int, flags Flag) liberr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.handlers[fd]
	if !ok {
		return ErrorFdNotFound.Error(nil)
	}

	reg.flags = flags
	ev := unix.EpollEvent{Events: toEpollEvents(flags), Fd: int32(fd)}

	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return ErrorPollFailed.Error(err)
	}

	return nil
}

func (r *epollReactor) RemoveFd(fd int) liberr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[fd]; !ok {
		return nil
	}

	delete(r.handlers, fd)
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)

	return nil
}

func (r *epollReactor) Poll(timeoutMs int) (int, liberr.Error) {
	if next, ok := r.timers.nextDeadline(); ok {
		until := int(time.Until(next) / time.Millisecond)
		if until < 0 {
			until = 0
		}
		if timeoutMs < 0 || until < timeoutMs {
			timeoutMs = until
		}
	}

	events := make([]unix.EpollEvent, 128)

	n, err := unix.EpollWait(r.epfd, events, timeoutMs)
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
		fd := int(events[i].Fd)

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

		flags := fromEpollEvents(events[i].Events)
		dispatch(reg.handler, fd, flags, reg.user)
		processed++
	}

	atomic.AddUint64(&r.ioEvents, uint64(processed))

	return processed, nil
}

func (r *epollReactor) Run() {
	atomic.StoreInt32(&r.running, 1)
	defer atomic.StoreInt32(&r.running, 0)

	for atomic.LoadInt32(&r.stop) == 0 {
		_, _ = r.Poll(100)
	}
}

func (r *epollReactor) Stop() {
	atomic.StoreInt32(&r.stop, 1)
	_, _ = unix.Write(r.wakeW, []byte{0})
}

func (r *epollReactor) IsRunning() bool {
	return atomic.LoadInt32(&r.running) == 1
}

func (r *epollReactor) AddTimer(at time.Time, handler func()) uint64 {
	return r.timers.add(at, handler)
}

func (r *epollReactor) CancelTimer(id uint64) {
	r.timers.cancel(id)
}

func (r *epollReactor) Close() liberr.Error {
	_ = unix.Close(r.wakeR)
	_ = unix.Close(r.wakeW)

	if err := unix.Close(r.epfd); err != nil {
		return ErrorPollFailed.Error(err)
	}

	return nil
}

func (r *epollReactor) Stats() Stats {
	return Stats{
		IOEvents:    atomic.LoadUint64(&r.ioEvents),
		TimersFired: atomic.LoadUint64(&r.timersFired),
		Loops:       atomic.LoadUint64(&r.loops),
	}
}

func pipe2() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
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
