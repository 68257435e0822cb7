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

package reactor

import (
	"time"

	liberr "github.com/nabbar/httpcore/errors"
)

// Flag is a readiness bitmask delivered to a Handler, or a registration
// request when passed to AddFd/ModifyFd. Edge is registration-only: it is
// never present in the flags a Handler observes.
type Flag uint8

const (
	Read Flag = 1 << iota
	Write
	Error
	HUP
	Edge
)

func (f Flag) Has(o Flag) bool {
	return f&o != 0
}

// Handler is invoked synchronously on the reactor's own goroutine whenever
// the registered fd becomes ready per its registered flags. user is the
// opaque pointer supplied at AddFd time.
type Handler func(fd int, flags Flag, user interface{})

// Stats mirrors the bookkeeping the teacher's reactor exposes for
// observability: executed work, pending backlog, and loop counters.
type Stats struct {
	IOEvents    uint64
	TimersFired uint64
	Loops       uint64
}

// Reactor is the narrow interface the rest of the system programs against;
// platform specifics (epoll, kqueue) are hidden behind it, per DESIGN NOTES'
// guidance to replace inheritance-based polymorphism with one concrete type
// chosen at compile time, exposed through a small interface.
type Reactor interface {
	// AddFd registers fd for the given flags. Re-adding an already
	// registered fd is idempotent: flags are merged into the existing
	// registration rather than erroring.
	AddFd(fd int, flags Flag, handler Handler, user interface{}) liberr.Error

	// ModifyFd replaces the event mask for an already-registered fd.
	ModifyFd(fd int, flags Flag) liberr.Error

	// RemoveFd de-registers fd. It is not an error to remove an fd that
	// was never added.
	RemoveFd(fd int) liberr.Error

	// Poll waits up to timeoutMs for readiness events (or the nearest
	// timer deadline, whichever is sooner) and dispatches them
	// synchronously. It returns the number of fd events processed.
	Poll(timeoutMs int) (int, liberr.Error)

	// Run loops calling Poll until Stop is observed. It must be called
	// from the goroutine that owns this reactor (AddFd/ModifyFd/RemoveFd
	// are not safe to call concurrently with Run from another goroutine,
	// except Stop itself).
	Run()

	// Stop requests the run loop to exit at the next poll boundary. Safe
	// to call from any goroutine.
	Stop()

	// IsRunning reports whether Run's loop is currently active.
	IsRunning() bool

	// AddTimer schedules handler to fire at absolute time at. Returns an
	// id usable with CancelTimer.
	AddTimer(at time.Time, handler func()) uint64

	// CancelTimer removes a pending timer by id. Canceling an id that
	// already fired or never existed is a no-op.
	CancelTimer(id uint64)

	// Close releases the reactor's OS handle (epoll/kqueue fd, wakeup
	// pipe). The reactor must not be used afterward.
	Close() liberr.Error

	// Stats returns a snapshot of loop counters.
	Stats() Stats
}
