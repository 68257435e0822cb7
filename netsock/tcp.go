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

package netsock

import (
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	liberr "github.com/nabbar/httpcore/errors"
)

// TCPSocket is a non-copyable, movable owner of one TCP file descriptor. The
// zero value is not usable; construct with NewTCPSocket or TCPSocketFromFd.
type TCPSocket struct {
	fd int32
}

// NewTCPSocket allocates a fresh, non-blocking TCP socket. af is
// unix.AF_INET or unix.AF_INET6.
func NewTCPSocket(af int) (*TCPSocket, liberr.Error) {
	fd, err := unix.Socket(af, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, ErrorSocketCreate.Error(err)
	}

	return &TCPSocket{fd: int32(fd)}, nil
}

// TCPSocketFromFd takes ownership of an existing file descriptor, typically
// one just returned by Accept.
func TCPSocketFromFd(fd int) *TCPSocket {
	return &TCPSocket{fd: int32(fd)}
}

// Fd returns the underlying file descriptor, or -1 if the socket is closed.
func (s *TCPSocket) Fd() int {
	return int(atomic.LoadInt32(&s.fd))
}

// IsValid reports whether the socket still owns an open descriptor.
func (s *TCPSocket) IsValid() bool {
	return atomic.LoadInt32(&s.fd) >= 0
}

// Release hands ownership of the descriptor to the caller; the TCPSocket no
// longer closes it.
func (s *TCPSocket) Release() int {
	return int(atomic.SwapInt32(&s.fd, -1))
}

// Close releases the descriptor. Safe to call more than once.
func (s *TCPSocket) Close() liberr.Error {
	fd := atomic.SwapInt32(&s.fd, -1)
	if fd < 0 {
		return nil
	}
	if err := unix.Close(int(fd)); err != nil {
		return ErrorSocketIO.Error(err)
	}
	return nil
}

func (s *TCPSocket) setOpt(level, opt, value int) liberr.Error {
	if !s.IsValid() {
		return ErrorSocketClosed.Error(nil)
	}
	if err := unix.SetsockoptInt(s.Fd(), level, opt, value); err != nil {
		return ErrorSocketOption.Error(err)
	}
	return nil
}

// SetNoDelay disables Nagle's algorithm.
func (s *TCPSocket) SetNoDelay(on bool) liberr.Error {
	v := 0
	if on {
		v = 1
	}
	return s.setOpt(unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// SetReuseAddr sets SO_REUSEADDR.
func (s *TCPSocket) SetReuseAddr(on bool) liberr.Error {
	v := 0
	if on {
		v = 1
	}
	return s.setOpt(unix.SOL_SOCKET, unix.SO_REUSEADDR, v)
}

// SetReusePort sets SO_REUSEPORT, enabling kernel-level load-balanced
// accept() across one listening socket per worker (Linux-only semantics;
// on BSD/Darwin SO_REUSEPORT has load-balancing behavior too).
func (s *TCPSocket) SetReusePort(on bool) liberr.Error {
	v := 0
	if on {
		v = 1
	}
	return s.setOpt(unix.SOL_SOCKET, unix.SO_REUSEPORT, v)
}

// SetKeepAlive sets SO_KEEPALIVE.
func (s *TCPSocket) SetKeepAlive(on bool) liberr.Error {
	v := 0
	if on {
		v = 1
	}
	return s.setOpt(unix.SOL_SOCKET, unix.SO_KEEPALIVE, v)
}

// SetRecvBufferSize sets SO_RCVBUF.
func (s *TCPSocket) SetRecvBufferSize(n int) liberr.Error {
	return s.setOpt(unix.SOL_SOCKET, unix.SO_RCVBUF, n)
}

// SetSendBufferSize sets SO_SNDBUF.
func (s *TCPSocket) SetSendBufferSize(n int) liberr.Error {
	return s.setOpt(unix.SOL_SOCKET, unix.SO_SNDBUF, n)
}

// Bind binds the socket to host:port. host may be empty for any address.
func (s *TCPSocket) Bind(host string, port uint16) liberr.Error {
	sa, err := resolveSockaddr(host, port)
	if err != nil {
		return ErrorSocketAddr.Error(err)
	}
	if bErr := unix.Bind(s.Fd(), sa); bErr != nil {
		return ErrorSocketBind.Error(bErr)
	}
	return nil
}

// Listen marks the socket as passive, accepting up to backlog pending
// connections.
func (s *TCPSocket) Listen(backlog int) liberr.Error {
	if err := unix.Listen(s.Fd(), backlog); err != nil {
		return ErrorSocketListen.Error(err)
	}
	return nil
}

// Connect initiates a (possibly in-progress, for a non-blocking socket)
// connection to host:port.
func (s *TCPSocket) Connect(host string, port uint16) liberr.Error {
	sa, err := resolveSockaddr(host, port)
	if err != nil {
		return ErrorSocketAddr.Error(err)
	}
	if cErr := unix.Connect(s.Fd(), sa); cErr != nil && cErr != unix.EINPROGRESS {
		return ErrorSocketConnect.Error(cErr)
	}
	return nil
}

// Accept accepts one pending connection, returning a new TCPSocket that
// owns the accepted descriptor. Returns (nil, nil, nil) when no connection
// is pending (EAGAIN/EWOULDBLOCK) on a non-blocking listener.
func (s *TCPSocket) Accept() (*TCPSocket, net.Addr, liberr.Error) {
	fd, sa, err := unix.Accept4(s.Fd(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN {
			return nil, nil, nil
		}
		return nil, nil, ErrorSocketAccept.Error(err)
	}

	return &TCPSocket{fd: int32(fd)}, sockaddrToAddr(sa), nil
}

// Send writes data to the socket. Returns the number of bytes written; a
// short write or EAGAIN is reported as (0, nil) so the caller can re-arm
// the reactor for Write readiness.
func (s *TCPSocket) Send(data []byte) (int, liberr.Error) {
	n, err := unix.Write(s.Fd(), data)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, ErrorSocketIO.Error(err)
	}
	return n, nil
}

// Recv reads into buffer. Returns (0, nil) on EAGAIN, (0, io.EOF-equivalent
// handled by caller via n==0 && err==nil after a prior successful read) is
// not distinguished here; callers treat n==0 with no error as peer EOF only
// when Read readiness fired (EAGAIN already filtered out).
func (s *TCPSocket) Recv(buffer []byte) (int, liberr.Error) {
	n, err := unix.Read(s.Fd(), buffer)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, ErrorSocketIO.Error(err)
	}
	return n, nil
}

// LocalAddr returns the socket's bound local address.
func (s *TCPSocket) LocalAddr() (net.Addr, liberr.Error) {
	sa, err := unix.Getsockname(s.Fd())
	if err != nil {
		return nil, ErrorSocketAddr.Error(err)
	}
	return sockaddrToAddr(sa), nil
}

// RemoteAddr returns the socket's connected peer address.
func (s *TCPSocket) RemoteAddr() (net.Addr, liberr.Error) {
	sa, err := unix.Getpeername(s.Fd())
	if err != nil {
		return nil, ErrorSocketAddr.Error(err)
	}
	return sockaddrToAddr(sa), nil
}

func resolveSockaddr(host string, port uint16) (unix.Sockaddr, error) {
	if host == "" {
		host = "0.0.0.0"
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, &net.AddrError{Err: "cannot resolve host", Addr: host}
		}
		ip = ips[0]
	}

	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: int(port)}
		copy(sa.Addr[:], v4)
		return sa, nil
	}

	sa := &unix.SockaddrInet6{Port: int(port)}
	copy(sa.Addr[:], ip.To16())
	return sa, nil
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return nil
	}
}
