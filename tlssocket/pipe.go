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
	"io"
	"net"
	"sync"
	"time"
)

// memBuffer is an unbounded, mutex-guarded byte queue: the Go stand-in for
// one direction of OpenSSL's BIO_s_mem() memory BIO pair. Writes never
// block; reads block until data is available, the buffer is closed, or a
// deadline set with setDeadline elapses.
type memBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []byte
	closed   bool
	deadline time.Time
	notify   func()
}

func newMemBuffer() *memBuffer {
	b := &memBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// setNotify registers a callback invoked after every successful write, once
// the lock is released. Used to wake a reactor polling for ciphertext this
// buffer just received from the TLS engine.
func (b *memBuffer) setNotify(f func()) {
	b.mu.Lock()
	b.notify = f
	b.mu.Unlock()
}

func (b *memBuffer) write(p []byte) (int, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, io.ErrClosedPipe
	}

	b.buf = append(b.buf, p...)
	b.cond.Broadcast()
	notify := b.notify
	b.mu.Unlock()

	if notify != nil {
		notify()
	}

	return len(p), nil
}

func (b *memBuffer) read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.buf) == 0 && !b.closed {
		if !b.deadline.IsZero() {
			if !time.Now().Before(b.deadline) {
				return 0, errTimeout{}
			}
			timer := time.AfterFunc(time.Until(b.deadline), b.cond.Broadcast)
			b.cond.Wait()
			timer.Stop()
			continue
		}
		b.cond.Wait()
	}

	if len(b.buf) == 0 && b.closed {
		return 0, io.EOF
	}

	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// drain returns and clears everything currently buffered, without blocking.
// Used by the reactor side to pull ciphertext the TLS engine queued for the
// network.
func (b *memBuffer) drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buf) == 0 {
		return nil
	}
	out := b.buf
	b.buf = nil
	return out
}

func (b *memBuffer) setDeadline(t time.Time) {
	b.mu.Lock()
	b.deadline = t
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *memBuffer) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

type bioAddr struct{}

func (bioAddr) Network() string { return "mem" }
func (bioAddr) String() string  { return "mem-bio" }

// bioConn is a net.Conn whose two directions are independent memBuffers:
// one carries ciphertext inbound from the network (fed by the reactor via
// Socket.Feed), the other carries ciphertext outbound to the network
// (drained by the reactor via Socket.PendingOutput). crypto/tls drives this
// Conn exactly as it would a real socket.
type bioConn struct {
	in  *memBuffer
	out *memBuffer
}

func newBioConn() *bioConn {
	return &bioConn{in: newMemBuffer(), out: newMemBuffer()}
}

func (c *bioConn) Read(p []byte) (int, error)  { return c.in.read(p) }
func (c *bioConn) Write(p []byte) (int, error) { return c.out.write(p) }

func (c *bioConn) Close() error {
	c.in.close()
	c.out.close()
	return nil
}

func (c *bioConn) LocalAddr() net.Addr  { return bioAddr{} }
func (c *bioConn) RemoteAddr() net.Addr { return bioAddr{} }

func (c *bioConn) SetDeadline(t time.Time) error {
	c.in.setDeadline(t)
	return nil
}

func (c *bioConn) SetReadDeadline(t time.Time) error {
	c.in.setDeadline(t)
	return nil
}

// SetWriteDeadline is a no-op: out is unbounded, so Write never blocks and
// can never time out.
func (c *bioConn) SetWriteDeadline(time.Time) error {
	return nil
}
