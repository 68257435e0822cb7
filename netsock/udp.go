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

// UDPSocket is a non-copyable, movable owner of one UDP file descriptor.
// HTTP/3 transport is reserved (spec Non-goal) but the datagram primitives
// are kept general so a QUIC layer can be grafted on later without
// reworking socket ownership.
type UDPSocket struct {
	fd int32
	af int
}

// NewUDPSocket allocates a fresh, non-blocking UDP socket. af is
// unix.AF_INET or unix.AF_INET6.
func NewUDPSocket(af int) (*UDPSocket, liberr.Error) {
	fd, err := unix.Socket(af, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return nil, ErrorSocketCreate.Error(err)
	}
	return &UDPSocket{fd: int32(fd), af: af}, nil
}

// UDPSocketFromFd takes ownership of an existing file descriptor.
func UDPSocketFromFd(fd int, af int) *UDPSocket {
	return &UDPSocket{fd: int32(fd), af: af}
}

func (s *UDPSocket) Fd() int {
	return int(atomic.LoadInt32(&s.fd))
}

func (s *UDPSocket) IsValid() bool {
	return atomic.LoadInt32(&s.fd) >= 0
}

func (s *UDPSocket) AddressFamily() int {
	return s.af
}

func (s *UDPSocket) Release() int {
	return int(atomic.SwapInt32(&s.fd, -1))
}

func (s *UDPSocket) Close() liberr.Error {
	fd := atomic.SwapInt32(&s.fd, -1)
	if fd < 0 {
		return nil
	}
	if err := unix.Close(int(fd)); err != nil {
		return ErrorSocketIO.Error(err)
	}
	return nil
}

func (s *UDPSocket) setOpt(level, opt, value int) liberr.Error {
	if !s.IsValid() {
		return ErrorSocketClosed.Error(nil)
	}
	if err := unix.SetsockoptInt(s.Fd(), level, opt, value); err != nil {
		return ErrorSocketOption.Error(err)
	}
	return nil
}

func (s *UDPSocket) SetReuseAddr(on bool) liberr.Error {
	v := 0
	if on {
		v = 1
	}
	return s.setOpt(unix.SOL_SOCKET, unix.SO_REUSEADDR, v)
}

// SetReusePort enables kernel-level datagram fan-out across one socket per
// worker, the UDP analogue of TCPSocket.SetReusePort.
func (s *UDPSocket) SetReusePort(on bool) liberr.Error {
	v := 0
	if on {
		v = 1
	}
	return s.setOpt(unix.SOL_SOCKET, unix.SO_REUSEPORT, v)
}

func (s *UDPSocket) SetRecvBufferSize(n int) liberr.Error {
	return s.setOpt(unix.SOL_SOCKET, unix.SO_RCVBUF, n)
}

func (s *UDPSocket) SetSendBufferSize(n int) liberr.Error {
	return s.setOpt(unix.SOL_SOCKET, unix.SO_SNDBUF, n)
}

func (s *UDPSocket) Bind(host string, port uint16) liberr.Error {
	sa, err := resolveSockaddr(host, port)
	if err != nil {
		return ErrorSocketAddr.Error(err)
	}
	if bErr := unix.Bind(s.Fd(), sa); bErr != nil {
		return ErrorSocketBind.Error(bErr)
	}
	return nil
}

// SendTo writes one datagram to addr.
func (s *UDPSocket) SendTo(data []byte, addr *net.UDPAddr) (int, liberr.Error) {
	sa, err := resolveSockaddr(addr.IP.String(), uint16(addr.Port))
	if err != nil {
		return 0, ErrorSocketAddr.Error(err)
	}
	if sErr := unix.Sendto(s.Fd(), data, 0, sa); sErr != nil {
		if sErr == unix.EAGAIN {
			return 0, nil
		}
		return 0, ErrorSocketIO.Error(sErr)
	}
	return len(data), nil
}

// RecvFrom reads one datagram, returning its sender address. Returns
// (0, nil, nil) on EAGAIN.
func (s *UDPSocket) RecvFrom(buffer []byte) (int, net.Addr, liberr.Error) {
	n, sa, err := unix.Recvfrom(s.Fd(), buffer, 0)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil, nil
		}
		return 0, nil, ErrorSocketIO.Error(err)
	}
	return n, sockaddrToAddr(sa), nil
}

func (s *UDPSocket) LocalAddr() (net.Addr, liberr.Error) {
	sa, err := unix.Getsockname(s.Fd())
	if err != nil {
		return nil, ErrorSocketAddr.Error(err)
	}
	return sockaddrToAddr(sa), nil
}
