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
	"net"
	"sync"

	liberr "github.com/nabbar/httpcore/errors"
	"github.com/nabbar/httpcore/listener"
	"github.com/nabbar/httpcore/netsock"
)

// Server is the unified, multi-protocol entry point described by
// spec.md §4.9: up to three independent listeners (TLS TCP, cleartext
// HTTP/1.1 TCP, and a reserved UDP listener) started and stopped
// together, sharing one Config.Handler.
type Server struct {
	cfg Config

	mu      sync.Mutex
	running bool

	tlsListener *listener.TCPListener
	h1Listener  *listener.TCPListener
	udpListener *listener.UDPListener
}

// New validates cfg and returns a Server ready to Start.
func New(cfg Config) (*Server, liberr.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{cfg: cfg}, nil
}

// Start brings up every listener cfg enables. On any listener's failure,
// every listener already started is stopped again before the error is
// returned, so a failed Start never leaves a partial server running.
func (s *Server) Start() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrorAlreadyRunning.Error(nil)
	}

	if s.cfg.EnableTLS {
		tlsCfg, err := newTLSConfig(s.cfg)
		if err != nil {
			return err
		}

		l, lErr := listener.NewTCP(s.cfg.listenerConfig(s.cfg.TLSPort), s.cfg.tlsHandler(tlsCfg))
		if lErr != nil {
			return ErrorListenerSetup.Error(lErr)
		}
		if sErr := l.Start(); sErr != nil {
			return ErrorListenerSetup.Error(sErr)
		}
		s.tlsListener = l
	}

	if s.cfg.EnableHTTP1Cleartext {
		l, lErr := listener.NewTCP(s.cfg.listenerConfig(s.cfg.HTTP1Port), s.cfg.cleartextHandler())
		if lErr != nil {
			s.stopLocked()
			return ErrorListenerSetup.Error(lErr)
		}
		if sErr := l.Start(); sErr != nil {
			s.stopLocked()
			return ErrorListenerSetup.Error(sErr)
		}
		s.h1Listener = l
	}

	if s.cfg.EnableHTTP3 {
		l, lErr := listener.NewUDP(s.cfg.listenerConfig(s.cfg.HTTP3Port), 65536, discardDatagram)
		if lErr != nil {
			s.stopLocked()
			return ErrorListenerSetup.Error(lErr)
		}
		if sErr := l.Start(); sErr != nil {
			s.stopLocked()
			return ErrorListenerSetup.Error(sErr)
		}
		s.udpListener = l
	}

	s.running = true
	return nil
}

// Stop brings down every running listener. It is idempotent: calling Stop
// on an already-stopped Server reports ErrorNotRunning rather than
// touching listener state twice.
func (s *Server) Stop() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrorNotRunning.Error(nil)
	}

	s.stopLocked()
	s.running = false
	return nil
}

func (s *Server) stopLocked() {
	if s.tlsListener != nil {
		_ = s.tlsListener.Stop()
		s.tlsListener = nil
	}
	if s.h1Listener != nil {
		_ = s.h1Listener.Stop()
		s.h1Listener = nil
	}
	if s.udpListener != nil {
		_ = s.udpListener.Stop()
		s.udpListener = nil
	}
}

// IsRunning reports whether Start has succeeded and Stop has not yet been
// called.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// discardDatagram backs the reserved HTTP/3 listener: spec.md's explicit
// Non-goal leaves no datagram protocol to parse, so every packet is
// dropped on arrival. The listener itself still runs, exercising
// listener.UDPListener end to end.
func discardDatagram(data []byte, from net.Addr, sock *netsock.UDPSocket) {}
