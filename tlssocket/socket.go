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

package tlssocket

import (
	"crypto/tls"
	"io"
	"sync"

	"github.com/nabbar/httpcore/atomic"
	"github.com/nabbar/httpcore/logger"
)

// SocketState mirrors the lifecycle of a memory-BIO backed TLS socket: the
// handshake has not started, is running, has produced a usable connection,
// failed, or the socket has been closed.
type SocketState uint8

const (
	HandshakeNeeded SocketState = iota
	HandshakeInProgress
	Connected
	SocketError
	SocketClosed
)

func (s SocketState) String() string {
	switch s {
	case HandshakeNeeded:
		return "handshake-needed"
	case HandshakeInProgress:
		return "handshake-in-progress"
	case Connected:
		return "connected"
	case SocketError:
		return "error"
	case SocketClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// OnPlaintext is invoked from the socket's private goroutine every time a
// Read against the TLS connection yields application data. The slice is only
// valid for the duration of the call.
type OnPlaintext func(p []byte)

// Socket bridges a non-blocking, reactor-driven caller and crypto/tls's
// blocking Conn. The reactor feeds raw ciphertext read from the network into
// Feed and drains ciphertext queued for the network with PendingOutput /
// CommitOutput; a dedicated goroutine owned by the Socket runs the handshake
// and the blocking plaintext Read loop against the wrapped tls.Conn.
type Socket struct {
	conn *bioConn
	tls  *tls.Conn

	state    atomic.Value[SocketState]
	onPlain  OnPlaintext
	runOnce  sync.Once
	closeErr atomic.Value[bool]

	writeMu sync.Mutex
}

// NewServerSocket wraps cfg in a server-side tls.Conn driven entirely through
// the in-memory duplex pair; nothing here touches a real net.Conn.
func NewServerSocket(cfg *tls.Config, onPlain OnPlaintext) (*Socket, error) {
	if cfg == nil {
		return nil, ErrorNilTLSConfig.Error(nil)
	}
	return newSocket(cfg, true, "", onPlain)
}

// NewClientSocket wraps cfg in a client-side tls.Conn; serverName drives both
// SNI and, when cfg.ServerName is empty, certificate verification.
func NewClientSocket(cfg *tls.Config, serverName string, onPlain OnPlaintext) (*Socket, error) {
	if cfg == nil {
		return nil, ErrorNilTLSConfig.Error(nil)
	}
	return newSocket(cfg, false, serverName, onPlain)
}

func newSocket(cfg *tls.Config, isServer bool, serverName string, onPlain OnPlaintext) (*Socket, error) {
	bc := newBioConn()

	s := &Socket{
		conn:    bc,
		onPlain: onPlain,
		state:   atomic.NewValue[SocketState](),
		closeErr: atomic.NewValue[bool](),
	}
	s.state.Store(HandshakeNeeded)

	if isServer {
		s.tls = tls.Server(bc, cfg)
	} else {
		c := cfg
		if serverName != "" && cfg.ServerName == "" {
			c = cfg.Clone()
			c.ServerName = serverName
		}
		s.tls = tls.Client(bc, c)
	}

	s.start()
	return s, nil
}

// start launches the goroutine that drives the handshake and then pumps
// plaintext out of the TLS connection until it is closed or errors. The
// goroutine is the sole reader of s.tls; Write is safe to call concurrently
// per crypto/tls's documented guarantee that Read and Write may run on
// separate goroutines.
func (s *Socket) start() {
	s.runOnce.Do(func() {
		go s.run()
	})
}

func (s *Socket) run() {
	s.state.Store(HandshakeInProgress)

	if err := s.tls.Handshake(); err != nil {
		s.state.Store(SocketError)
		logger.ErrorLevel.LogError("tls handshake failed", err)
		return
	}

	s.state.Store(Connected)

	buf := make([]byte, 16384)
	for {
		n, err := s.tls.Read(buf)
		if n > 0 && s.onPlain != nil {
			s.onPlain(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				logger.ErrorLevel.LogError("tls read loop terminated", err)
				s.state.Store(SocketError)
			} else {
				s.state.Store(SocketClosed)
			}
			return
		}
	}
}

// SetOutputReady registers a callback invoked whenever the TLS engine
// queues new ciphertext for the network, e.g. during the handshake's first
// flight or after an application Write. A reactor-driven caller uses this to
// learn when to call PendingOutput instead of polling. The callback runs on
// the Socket's private goroutine and must not block.
func (s *Socket) SetOutputReady(cb func()) {
	s.conn.out.setNotify(cb)
}

// State reports the socket's current lifecycle stage.
func (s *Socket) State() SocketState {
	return s.state.Load()
}

// Negotiated returns the ALPN protocol chosen during the handshake, or an
// empty string before the handshake completes or when none was negotiated.
func (s *Socket) Negotiated() string {
	return s.tls.ConnectionState().NegotiatedProtocol
}

// HandshakeComplete reports whether the TLS handshake has finished
// successfully.
func (s *Socket) HandshakeComplete() bool {
	return s.state.Load() == Connected
}

// Feed delivers ciphertext the reactor read off the real network socket into
// the TLS engine. It never blocks.
func (s *Socket) Feed(ciphertext []byte) (int, error) {
	return s.conn.in.write(ciphertext)
}

// PendingOutput returns and clears ciphertext the TLS engine queued for the
// network. If the caller cannot write the whole slice to the real socket in
// one shot, it is responsible for buffering the remainder itself; this drain
// is one-shot and does not leave anything behind to re-read.
func (s *Socket) PendingOutput() []byte {
	return s.conn.out.drain()
}

// Write sends plaintext application data. It blocks until crypto/tls has
// written the resulting ciphertext into the outbound memBuffer, which never
// blocks, so this call returns quickly once the handshake has completed.
func (s *Socket) Write(plaintext []byte) (int, error) {
	if s.state.Load() == SocketClosed || s.state.Load() == SocketError {
		return 0, ErrorWriteAfterClose.Error(nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.tls.Write(plaintext)
}

// Close shuts down both directions of the in-memory bridge, which in turn
// unblocks the private goroutine's Read with io.EOF.
func (s *Socket) Close() error {
	if !s.closeErr.Load() {
		s.closeErr.Store(true)
		s.state.Store(SocketClosed)
		return s.conn.Close()
	}
	return ErrorSocketClosed.Error(nil)
}
