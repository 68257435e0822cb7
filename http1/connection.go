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

package http1

import (
	liberr "github.com/nabbar/httpcore/errors"
	"github.com/nabbar/httpcore/netsock"
	"github.com/nabbar/httpcore/reactor"
)

// MaxRequestSize is the fixed cap on one request's wire size (request
// line + headers + body); a request exceeding it gets a 413 and the
// connection is closed.
const MaxRequestSize = 1 << 20

const readChunkSize = 16 * 1024

// RequestHandler is invoked once per fully-parsed request, synchronously
// on the connection's own reactor goroutine. It must call respond exactly
// once before returning. respond is only ever invoked on this same
// goroutine, which trivially satisfies a "callable from any thread"
// contract: a connection never migrates workers for its lifetime.
type RequestHandler func(req *Request, respond func(status int, headers []ResponseHeader, body []byte))

// Connection drives one accepted HTTP/1 socket through repeated
// parse/dispatch/serialize cycles for as long as the client keeps the
// connection alive.
type Connection struct {
	sock *netsock.TCPSocket
	rx   reactor.Reactor

	handler RequestHandler
	parser  *Parser
	req     Request

	readBuf []byte
	readLen int

	writeBuf []byte
	writeOff int

	wantWrite  bool
	closeAfter bool
	closed     bool
}

// NewConnection registers sock with rx and begins driving HTTP/1 request
// cycles over it, invoking handler for each parsed request. TCP_NODELAY
// is set on the socket per spec.
func NewConnection(sock *netsock.TCPSocket, rx reactor.Reactor, handler RequestHandler) (*Connection, liberr.Error) {
	if err := sock.SetNoDelay(true); err != nil {
		return nil, err
	}

	c := &Connection{
		sock:    sock,
		rx:      rx,
		handler: handler,
		parser:  NewParser(),
		readBuf: make([]byte, readChunkSize),
	}

	if err := rx.AddFd(sock.Fd(), reactor.Read|reactor.Edge, c.onEvent, nil); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Connection) onEvent(fd int, flags reactor.Flag, user interface{}) {
	if c.closed {
		return
	}

	if flags.Has(reactor.Write) {
		c.flushWrite()
	}

	if flags.Has(reactor.Read) && !c.closed {
		c.readLoop()
	}

	if c.closed {
		return
	}

	if flags.Has(reactor.HUP) || flags.Has(reactor.Error) {
		c.close()
	}
}

// readLoop drains the socket per the edge-triggered contract (loop until
// EAGAIN), feeding every byte read to the parser and dispatching each
// request the parser completes.
func (c *Connection) readLoop() {
	chunk := make([]byte, readChunkSize)

	for {
		n, err := c.sock.Recv(chunk)
		if err != nil {
			c.close()
			return
		}
		if n == 0 {
			return
		}

		c.appendRead(chunk[:n])

		if c.readLen > MaxRequestSize {
			c.respondAndClose(413, nil)
			return
		}

		c.drainRequests()
		if c.closed {
			return
		}
	}
}

func (c *Connection) appendRead(b []byte) {
	need := c.readLen + len(b)
	if need > cap(c.readBuf) {
		grown := make([]byte, need, need*2)
		copy(grown, c.readBuf[:c.readLen])
		c.readBuf = grown
	} else if need > len(c.readBuf) {
		c.readBuf = c.readBuf[:cap(c.readBuf)]
	}
	copy(c.readBuf[c.readLen:need], b)
	c.readLen = need
}

// drainRequests runs the parser over the buffered bytes, dispatching one
// request per completed parse and handling pipelined requests (more than
// one complete request already buffered) in receive order.
func (c *Connection) drainRequests() {
	for {
		consumed, result, err := c.parser.Parse(c.readBuf[:c.readLen], &c.req)

		switch result {
		case ResultNeedMore:
			return

		case ResultError:
			_ = err
			c.respondAndClose(400, nil)
			return

		case ResultComplete:
			keepAlive := c.req.KeepAlive && !c.req.Upgrade
			version := c.req.Version

			c.handler(&c.req, func(status int, headers []ResponseHeader, body []byte) {
				c.writeBuf = AppendResponse(c.writeBuf, version, status, headers, body, keepAlive)
			})

			remaining := c.readLen - consumed
			copy(c.readBuf, c.readBuf[consumed:c.readLen])
			c.readLen = remaining
			c.parser.Reset()

			c.flushWrite()
			if c.closed {
				return
			}

			if !keepAlive {
				c.closeAfter = true
				c.flushWrite()
				return
			}
		}
	}
}

func (c *Connection) respondAndClose(status int, headers []ResponseHeader) {
	c.writeBuf = AppendResponse(c.writeBuf, Version11, status, headers, nil, false)
	c.closeAfter = true
	c.flushWrite()
}

// flushWrite sends as much of writeBuf as the socket accepts. If the
// socket would block, Write readiness is armed so onEvent is called again
// once more capacity is available; once writeBuf fully drains, Write
// interest is dropped and, if closeAfter was requested, the connection
// closes.
func (c *Connection) flushWrite() {
	for c.writeOff < len(c.writeBuf) {
		n, err := c.sock.Send(c.writeBuf[c.writeOff:])
		if err != nil {
			c.close()
			return
		}
		if n == 0 {
			c.armWrite()
			return
		}
		c.writeOff += n
	}

	c.writeBuf = c.writeBuf[:0]
	c.writeOff = 0
	c.disarmWrite()

	if c.closeAfter {
		c.close()
	}
}

func (c *Connection) armWrite() {
	if c.wantWrite {
		return
	}
	c.wantWrite = true
	_ = c.rx.ModifyFd(c.sock.Fd(), reactor.Read|reactor.Write|reactor.Edge)
}

func (c *Connection) disarmWrite() {
	if !c.wantWrite {
		return
	}
	c.wantWrite = false
	_ = c.rx.ModifyFd(c.sock.Fd(), reactor.Read|reactor.Edge)
}

func (c *Connection) close() {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.rx.RemoveFd(c.sock.Fd())
	_ = c.sock.Close()
}

// Close tears the connection down from outside the reactor goroutine's
// own event handling, e.g. during server shutdown.
func (c *Connection) Close() {
	c.close()
}
