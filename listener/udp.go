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

package listener

import (
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/httpcore/errors"
	"github.com/nabbar/httpcore/netsock"
	"github.com/nabbar/httpcore/reactor"
)

// DatagramHandler is invoked for each datagram read off a worker's socket,
// on that worker's reactor goroutine. HTTP/3 transport is reserved (spec
// Non-goal); this listener exists so a QUIC datagram layer can be grafted
// on without reworking socket/worker ownership.
type DatagramHandler func(data []byte, from net.Addr, sock *netsock.UDPSocket)

// UDPListener runs one reactor + one UDP socket per worker, relying on
// SO_REUSEPORT for kernel-level datagram fan-out when enabled.
type UDPListener struct {
	cfg     Config
	handler DatagramHandler
	bufSize int

	mu      sync.Mutex
	running int32
	workers []*udpWorker
}

type udpWorker struct {
	rx   reactor.Reactor
	sock *netsock.UDPSocket
}

// NewUDP validates cfg and constructs a UDPListener. bufSize bounds each
// read's datagram buffer.
func NewUDP(cfg Config, bufSize int, handler DatagramHandler) (*UDPListener, liberr.Error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, ErrorConfigInvalid.Error(nil)
	}
	if bufSize <= 0 {
		bufSize = 65507
	}

	return &UDPListener{cfg: cfg, handler: handler, bufSize: bufSize}, nil
}

func (l *UDPListener) IsRunning() bool {
	return atomic.LoadInt32(&l.running) == 1
}

func (l *UDPListener) Start() liberr.Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsRunning() {
		return ErrorAlreadyRunning.Error(nil)
	}

	n := l.cfg.resolvedWorkers()
	if !l.cfg.UseReusePort {
		n = 1
	}

	af := unix.AF_INET
	if ip := net.ParseIP(l.cfg.Host); ip != nil && ip.To4() == nil {
		af = unix.AF_INET6
	}

	workers := make([]*udpWorker, 0, n)

	for i := 0; i < n; i++ {
		sock, err := netsock.NewUDPSocket(af)
		if err != nil {
			return ErrorSocketSetup.Error(err)
		}
		if err = sock.SetReuseAddr(true); err != nil {
			return ErrorSocketSetup.Error(err)
		}
		if l.cfg.UseReusePort {
			if err = sock.SetReusePort(true); err != nil {
				return ErrorSocketSetup.Error(err)
			}
		}
		if err = sock.Bind(l.cfg.Host, l.cfg.Port); err != nil {
			return ErrorSocketSetup.Error(err)
		}

		rx, rErr := reactor.New()
		if rErr != nil {
			return ErrorReactorSetup.Error(rErr)
		}

		w := &udpWorker{rx: rx, sock: sock}

		if aErr := rx.AddFd(sock.Fd(), reactor.Read|reactor.Edge, l.readHandler(w), nil); aErr != nil {
			return ErrorReactorSetup.Error(aErr)
		}

		workers = append(workers, w)
		go rx.Run()
	}

	l.workers = workers
	atomic.StoreInt32(&l.running, 1)

	return nil
}

func (l *UDPListener) readHandler(w *udpWorker) reactor.Handler {
	buf := make([]byte, l.bufSize)

	return func(fd int, flags reactor.Flag, user interface{}) {
		for {
			n, from, err := w.sock.RecvFrom(buf)
			if err != nil || (n == 0 && from == nil) {
				return
			}
			l.handler(buf[:n], from, w.sock)
		}
	}
}

func (l *UDPListener) Stop() liberr.Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.IsRunning() {
		return ErrorNotRunning.Error(nil)
	}

	for _, w := range l.workers {
		w.rx.Stop()
		_ = w.sock.Close()
	}

	atomic.StoreInt32(&l.running, 0)

	return nil
}
