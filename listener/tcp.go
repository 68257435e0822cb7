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
	"github.com/nabbar/httpcore/ringbuf"
)

// ConnHandler is invoked once per accepted connection, on the worker
// reactor's own goroutine, so it must not block.
type ConnHandler func(conn *netsock.TCPSocket, addr net.Addr, rx reactor.Reactor)

// TCPListener is a thread-per-core acceptor: one reactor per worker, either
// each owning an independent SO_REUSEPORT listening socket, or all sharing
// one acceptor that fans accepted sockets out to worker queues.
type TCPListener struct {
	cfg     Config
	handler ConnHandler

	mu      sync.Mutex
	running int32
	workers []*tcpWorker

	accepted uint64
}

type tcpWorker struct {
	rx   reactor.Reactor
	sock *netsock.TCPSocket // non-nil only in reuseport mode

	queue *ringbuf.SPSC // non-nil only in fan-out mode
	wakeR int
	wakeW int
}

// NewTCP validates cfg and constructs a TCPListener. The listening
// socket(s) are not created until Start.
func NewTCP(cfg Config, handler ConnHandler) (*TCPListener, liberr.Error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, ErrorConfigInvalid.Error(nil)
	}

	return &TCPListener{cfg: cfg, handler: handler}, nil
}

// IsRunning reports whether Start has completed and Stop has not yet been
// called.
func (l *TCPListener) IsRunning() bool {
	return atomic.LoadInt32(&l.running) == 1
}

// Accepted returns the cumulative number of accepted connections.
func (l *TCPListener) Accepted() uint64 {
	return atomic.LoadUint64(&l.accepted)
}

// Start creates the worker reactors and begins accepting. It returns once
// every worker's reactor is registered and running in its own goroutine.
func (l *TCPListener) Start() liberr.Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsRunning() {
		return ErrorAlreadyRunning.Error(nil)
	}

	n := l.cfg.resolvedWorkers()
	af := unix.AF_INET
	if ip := net.ParseIP(l.cfg.Host); ip != nil && ip.To4() == nil {
		af = unix.AF_INET6
	}

	if l.cfg.UseReusePort {
		workers, err := l.startReusePort(n, af)
		if err != nil {
			return err
		}
		l.workers = workers
	} else {
		workers, err := l.startFanOut(n, af)
		if err != nil {
			return err
		}
		l.workers = workers
	}

	atomic.StoreInt32(&l.running, 1)

	return nil
}

func (l *TCPListener) startReusePort(n, af int) ([]*tcpWorker, liberr.Error) {
	workers := make([]*tcpWorker, 0, n)

	for i := 0; i < n; i++ {
		sock, err := netsock.NewTCPSocket(af)
		if err != nil {
			return nil, ErrorSocketSetup.Error(err)
		}
		if err = sock.SetReuseAddr(true); err != nil {
			return nil, ErrorSocketSetup.Error(err)
		}
		if err = sock.SetReusePort(true); err != nil {
			return nil, ErrorSocketSetup.Error(err)
		}
		if err = sock.Bind(l.cfg.Host, l.cfg.Port); err != nil {
			return nil, ErrorSocketSetup.Error(err)
		}
		if err = sock.Listen(l.cfg.Backlog); err != nil {
			return nil, ErrorSocketSetup.Error(err)
		}

		rx, rErr := reactor.New()
		if rErr != nil {
			return nil, ErrorReactorSetup.Error(rErr)
		}

		w := &tcpWorker{rx: rx, sock: sock}

		if aErr := rx.AddFd(sock.Fd(), reactor.Read|reactor.Edge, l.acceptHandler(w), nil); aErr != nil {
			return nil, ErrorReactorSetup.Error(aErr)
		}

		workers = append(workers, w)
		go rx.Run()
	}

	return workers, nil
}

// acceptHandler drains every pending connection on an edge-triggered listen
// fd, per spec.md's edge-triggered readiness contract ("level-triggered
// Read semantics: keep calling recv until EAGAIN" applied here to accept).
func (l *TCPListener) acceptHandler(w *tcpWorker) reactor.Handler {
	return func(fd int, flags reactor.Flag, user interface{}) {
		for {
			conn, addr, err := w.sock.Accept()
			if err != nil || conn == nil {
				return
			}

			atomic.AddUint64(&l.accepted, 1)
			l.handler(conn, addr, w.rx)
		}
	}
}

func (l *TCPListener) startFanOut(n, af int) ([]*tcpWorker, liberr.Error) {
	listenSock, err := netsock.NewTCPSocket(af)
	if err != nil {
		return nil, ErrorSocketSetup.Error(err)
	}
	if err = listenSock.SetReuseAddr(true); err != nil {
		return nil, ErrorSocketSetup.Error(err)
	}
	if err = listenSock.Bind(l.cfg.Host, l.cfg.Port); err != nil {
		return nil, ErrorSocketSetup.Error(err)
	}
	if err = listenSock.Listen(l.cfg.Backlog); err != nil {
		return nil, ErrorSocketSetup.Error(err)
	}

	fanWorkers := make([]*tcpWorker, 0, n)

	for i := 0; i < n; i++ {
		rx, rErr := reactor.New()
		if rErr != nil {
			return nil, ErrorReactorSetup.Error(rErr)
		}

		wr, ww, pErr := pipe()
		if pErr != nil {
			return nil, ErrorReactorSetup.Error(pErr)
		}

		w := &tcpWorker{
			rx:    rx,
			queue: ringbuf.NewSPSC(1024),
			wakeR: wr,
			wakeW: ww,
		}

		if aErr := rx.AddFd(wr, reactor.Read, l.drainHandler(w), nil); aErr != nil {
			return nil, ErrorReactorSetup.Error(aErr)
		}

		fanWorkers = append(fanWorkers, w)
		go rx.Run()
	}

	acceptRx, aErr := reactor.New()
	if aErr != nil {
		return nil, ErrorReactorSetup.Error(aErr)
	}

	next := uint64(0)
	aHandler := func(fd int, flags reactor.Flag, user interface{}) {
		for {
			conn, addr, err := listenSock.Accept()
			if err != nil || conn == nil {
				return
			}

			w := fanWorkers[int(next%uint64(len(fanWorkers)))]
			next++

			if !w.queue.TryPush(fanItem{conn: conn, addr: addr}) {
				_ = conn.Close()
				continue
			}

			_, _ = unixWrite(w.wakeW)
		}
	}

	if err2 := acceptRx.AddFd(listenSock.Fd(), reactor.Read|reactor.Edge, aHandler, nil); err2 != nil {
		return nil, ErrorReactorSetup.Error(err2)
	}

	acceptorWorker := &tcpWorker{rx: acceptRx, sock: listenSock}
	go acceptRx.Run()

	workers := append([]*tcpWorker{acceptorWorker}, fanWorkers...)

	return workers, nil
}

type fanItem struct {
	conn *netsock.TCPSocket
	addr net.Addr
}

func (l *TCPListener) drainHandler(w *tcpWorker) reactor.Handler {
	return func(fd int, flags reactor.Flag, user interface{}) {
		drainPipe(w.wakeR)

		for {
			item, ok := w.queue.TryPop()
			if !ok {
				return
			}

			fi := item.(fanItem)
			atomic.AddUint64(&l.accepted, 1)
			l.handler(fi.conn, fi.addr, w.rx)
		}
	}
}

// Stop halts every worker reactor and closes their listening sockets. It
// does not close already-accepted connections, whose lifetime belongs to
// the caller's ConnHandler.
func (l *TCPListener) Stop() liberr.Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.IsRunning() {
		return ErrorNotRunning.Error(nil)
	}

	for _, w := range l.workers {
		w.rx.Stop()
		if w.sock != nil {
			_ = w.sock.Close()
		}
		if w.wakeR != 0 {
			closeFd(w.wakeR)
			closeFd(w.wakeW)
		}
	}

	atomic.StoreInt32(&l.running, 0)

	return nil
}
