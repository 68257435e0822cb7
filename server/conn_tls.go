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

package server

import (
	"crypto/tls"
	"net"
	"sync"

	"github.com/nabbar/httpcore/atomic"
	liberr "github.com/nabbar/httpcore/errors"
	"github.com/nabbar/httpcore/http1"
	"github.com/nabbar/httpcore/http2"
	"github.com/nabbar/httpcore/netsock"
	"github.com/nabbar/httpcore/reactor"
	"github.com/nabbar/httpcore/tlssocket"
)

const tlsReadChunkSize = 16 * 1024

// tlsConn drives one TLS-terminated connection: ALPN selects HTTP/2 or
// HTTP/1.1 once the handshake completes, and either protocol's plaintext is
// produced and consumed on tlssocket.Socket's own private goroutine (see
// onPlaintext), never on the reactor goroutine that owns sock's fd.
//
// The two goroutines only ever communicate through outBuf, guarded by mu,
// and the wake pipe: the TLS goroutine appends ciphertext and signals the
// pipe; the reactor goroutine drains outBuf and arms/disarms Write interest,
// which keeps every reactor.Reactor call (ModifyFd in particular) on the
// single goroutine the interface requires it from.
type tlsConn struct {
	cfg  Config
	sock *netsock.TCPSocket
	rx   reactor.Reactor
	tls  *tlssocket.Socket

	wakeR, wakeW int

	mu        sync.Mutex
	outBuf    []byte
	outOff    int
	wantWrite bool

	rawReadBuf []byte

	protocol string
	h2       *http2.Connection
	h1Parser *http1.Parser
	h1Req    http1.Request
	h1Buf    []byte
	h1Len    int

	closed atomic.Value[bool]
}

func newTLSConfig(c Config) (*tls.Config, liberr.Error) {
	tc := c.TLS.New()
	out, err := tlssocket.NewALPNConfig(tc, "", c.ALPNProtocols)
	if err != nil {
		return nil, ErrorListenerSetup.Error(err)
	}
	return out, nil
}

// tlsHandler returns a listener.ConnHandler that terminates TLS on every
// accepted connection and dispatches the negotiated protocol's requests
// into Handler, per spec.md §4.9/§9's ALPN-based dispatch.
func (c Config) tlsHandler(tlsCfg *tls.Config) func(sock *netsock.TCPSocket, addr net.Addr, rx reactor.Reactor) {
	return func(sock *netsock.TCPSocket, addr net.Addr, rx reactor.Reactor) {
		c.Stats.onAccept("tls")

		if err := sock.SetNoDelay(true); err != nil {
			_ = sock.Close()
			return
		}

		wr, ww, err := selfPipe()
		if err != nil {
			_ = sock.Close()
			return
		}

		tc := &tlsConn{
			cfg:        c,
			sock:       sock,
			rx:         rx,
			wakeR:      wr,
			wakeW:      ww,
			rawReadBuf: make([]byte, tlsReadChunkSize),
			h1Buf:      make([]byte, tlsReadChunkSize),
		}
		tc.closed.Store(false)

		s, sErr := tlssocket.NewServerSocket(tlsCfg, tc.onPlaintext)
		if sErr != nil {
			selfPipeClose(wr)
			selfPipeClose(ww)
			_ = sock.Close()
			return
		}
		tc.tls = s
		s.SetOutputReady(tc.onOutputReady)

		if aErr := rx.AddFd(sock.Fd(), reactor.Read|reactor.Edge, tc.onSocketEvent, nil); aErr != nil {
			_ = tc.tls.Close()
			selfPipeClose(wr)
			selfPipeClose(ww)
			_ = sock.Close()
			return
		}
		if aErr := rx.AddFd(wr, reactor.Read, tc.onWake, nil); aErr != nil {
			tc.close()
			return
		}
	}
}

// onOutputReady runs on the TLS engine's private goroutine. It only
// appends to the mutex-guarded outBuf and pings the wake pipe; it must
// never touch the reactor.
func (tc *tlsConn) onOutputReady() {
	tc.mu.Lock()
	tc.outBuf = append(tc.outBuf, tc.tls.PendingOutput()...)
	tc.mu.Unlock()
	selfPipeNotify(tc.wakeW)
}

// onSocketEvent runs on the reactor goroutine for the real TCP fd.
func (tc *tlsConn) onSocketEvent(fd int, flags reactor.Flag, user interface{}) {
	if tc.closed.Load() {
		return
	}

	if flags.Has(reactor.Write) {
		tc.flushOutbound()
	}

	if flags.Has(reactor.Read) && !tc.closed.Load() {
		tc.readLoop()
	}

	if tc.closed.Load() {
		return
	}

	if flags.Has(reactor.HUP) || flags.Has(reactor.Error) {
		tc.close()
	}
}

// onWake runs on the reactor goroutine for the wake pipe fd.
func (tc *tlsConn) onWake(fd int, flags reactor.Flag, user interface{}) {
	selfPipeDrain(tc.wakeR)
	if !tc.closed.Load() {
		tc.flushOutbound()
	}
}

// readLoop drains the real socket, feeding ciphertext to the TLS engine.
// Feed never blocks; the TLS goroutine wakes on its own to consume it.
func (tc *tlsConn) readLoop() {
	for {
		n, err := tc.sock.Recv(tc.rawReadBuf)
		if err != nil {
			tc.close()
			return
		}
		if n == 0 {
			return
		}

		tc.cfg.Stats.addBytesIn(n)
		if _, fErr := tc.tls.Feed(tc.rawReadBuf[:n]); fErr != nil {
			tc.close()
			return
		}
	}
}

// flushOutbound sends queued ciphertext to the real socket. Only ever
// called on the reactor goroutine (from onSocketEvent or onWake), so the
// ModifyFd calls inside armWrite/disarmWrite never race the reactor's own
// Run loop.
func (tc *tlsConn) flushOutbound() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for tc.outOff < len(tc.outBuf) {
		n, err := tc.sock.Send(tc.outBuf[tc.outOff:])
		if err != nil {
			tc.closeLocked()
			return
		}
		if n == 0 {
			tc.armWriteLocked()
			return
		}
		tc.outOff += n
		tc.cfg.Stats.addBytesOut(n)
	}

	tc.outBuf = tc.outBuf[:0]
	tc.outOff = 0
	tc.disarmWriteLocked()
}

func (tc *tlsConn) armWriteLocked() {
	if tc.wantWrite {
		return
	}
	tc.wantWrite = true
	_ = tc.rx.ModifyFd(tc.sock.Fd(), reactor.Read|reactor.Write|reactor.Edge)
}

func (tc *tlsConn) disarmWriteLocked() {
	if !tc.wantWrite {
		return
	}
	tc.wantWrite = false
	_ = tc.rx.ModifyFd(tc.sock.Fd(), reactor.Read|reactor.Edge)
}

func (tc *tlsConn) close() {
	tc.mu.Lock()
	tc.closeLocked()
	tc.mu.Unlock()
}

func (tc *tlsConn) closeLocked() {
	if !tc.closed.CompareAndSwap(false, true) {
		return
	}
	_ = tc.rx.RemoveFd(tc.sock.Fd())
	_ = tc.rx.RemoveFd(tc.wakeR)
	selfPipeClose(tc.wakeR)
	selfPipeClose(tc.wakeW)
	_ = tc.tls.Close()
	_ = tc.sock.Close()
	tc.cfg.Stats.onClose("tls")
}

// onPlaintext runs entirely on tlssocket.Socket's private goroutine: the
// first call picks the protocol from the completed handshake's ALPN
// result, then every call feeds the chosen protocol pump. HTTP/1.1 and
// HTTP/2 framing are both strictly ordered per the underlying tls.Conn
// Read loop, so no further synchronization is needed here.
func (tc *tlsConn) onPlaintext(p []byte) {
	if tc.closed.Load() {
		return
	}

	if tc.protocol == "" {
		tc.protocol = tc.tls.Negotiated()
		if tc.protocol == tlssocket.ProtoH2 {
			tc.h2 = http2.NewConnection(true, http2.DefaultConnectionSettings(), tc.onH2Request)
		} else {
			tc.h1Parser = http1.NewParser()
		}
	}

	if tc.h2 != nil {
		tc.feedH2(p)
	} else {
		tc.feedH1(p)
	}
}

func (tc *tlsConn) feedH2(p []byte) {
	if _, err := tc.h2.ProcessInput(p); err != nil {
		tc.close()
		return
	}
	tc.flushH2Output()
}

func (tc *tlsConn) flushH2Output() {
	out := tc.h2.GetOutput()
	if len(out) == 0 {
		return
	}
	n, err := tc.tls.Write(out)
	tc.h2.CommitOutput(n)
	if err != nil {
		tc.close()
	}
}

func (tc *tlsConn) onH2Request(s *http2.Stream) {
	tc.cfg.Stats.onStreamOpen()

	hdrs := s.RequestHeaders()
	sr := &Request{
		Method:  hdrs[":method"],
		Path:    hdrs[":path"],
		Headers: headerFromH2(hdrs),
		Body:    append([]byte(nil), s.RequestBody()...),
	}

	streamID := s.ID()
	tc.cfg.Handler(sr, func(status int, headers Header, body []byte) {
		tc.cfg.Stats.onRequest("h2", status)
		tc.cfg.Stats.onStreamClose()

		m := make(map[string]string, len(headers))
		for _, f := range headers {
			m[f.Name] = f.Value
		}
		_ = tc.h2.SendResponse(streamID, status, m, body)
	})

	tc.flushH2Output()
}

func headerFromH2(h map[string]string) Header {
	out := make(Header, 0, len(h))
	for k, v := range h {
		if len(k) > 0 && k[0] == ':' {
			continue
		}
		out = append(out, HeaderField{Name: k, Value: v})
	}
	return out
}

func (tc *tlsConn) feedH1(data []byte) {
	tc.appendH1(data)

	if tc.h1Len > http1.MaxRequestSize {
		tc.writeH1(http1.Version11, 413, nil, nil, false)
		tc.close()
		return
	}

	for {
		consumed, result, err := tc.h1Parser.Parse(tc.h1Buf[:tc.h1Len], &tc.h1Req)

		switch result {
		case http1.ResultNeedMore:
			return

		case http1.ResultError:
			_ = err
			tc.writeH1(http1.Version11, 400, nil, nil, false)
			tc.close()
			return

		case http1.ResultComplete:
			keepAlive := tc.h1Req.KeepAlive && !tc.h1Req.Upgrade
			version := tc.h1Req.Version

			tc.cfg.dispatchHTTP1(&tc.h1Req, func(status int, headers []http1.ResponseHeader, body []byte) {
				tc.writeH1(version, status, headers, body, keepAlive)
			})

			remaining := tc.h1Len - consumed
			copy(tc.h1Buf, tc.h1Buf[consumed:tc.h1Len])
			tc.h1Len = remaining
			tc.h1Parser.Reset()

			if tc.closed.Load() {
				return
			}
			if !keepAlive {
				tc.close()
				return
			}
		}
	}
}

func (tc *tlsConn) writeH1(version http1.Version, status int, headers []http1.ResponseHeader, body []byte, keepAlive bool) {
	out := http1.AppendResponse(nil, version, status, headers, body, keepAlive)
	if _, err := tc.tls.Write(out); err != nil {
		tc.close()
	}
}

func (tc *tlsConn) appendH1(b []byte) {
	need := tc.h1Len + len(b)
	if need > cap(tc.h1Buf) {
		grown := make([]byte, need, need*2)
		copy(grown, tc.h1Buf[:tc.h1Len])
		tc.h1Buf = grown
	} else if need > len(tc.h1Buf) {
		tc.h1Buf = tc.h1Buf[:cap(tc.h1Buf)]
	}
	copy(tc.h1Buf[tc.h1Len:need], b)
	tc.h1Len = need
}
