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

	"github.com/nabbar/httpcore/http1"
	"github.com/nabbar/httpcore/netsock"
	"github.com/nabbar/httpcore/reactor"
)

// cleartextHandler returns a listener.ConnHandler that drives every
// accepted connection as plain HTTP/1.1, per spec.md §4.9's rule that the
// cleartext listener never speaks anything else.
func (c Config) cleartextHandler() func(sock *netsock.TCPSocket, addr net.Addr, rx reactor.Reactor) {
	return func(sock *netsock.TCPSocket, addr net.Addr, rx reactor.Reactor) {
		c.Stats.onAccept("http1")

		_, err := http1.NewConnection(sock, rx, func(req *http1.Request, respond func(status int, headers []http1.ResponseHeader, body []byte)) {
			c.dispatchHTTP1(req, respond)
		})
		if err != nil {
			_ = sock.Close()
			c.Stats.onClose("http1")
		}
	}
}

// dispatchHTTP1 adapts one parsed http1.Request into the protocol-agnostic
// Request/ResponseFunc pair and invokes Handler, then adapts the answer
// back into http1.ResponseHeader form.
func (c Config) dispatchHTTP1(req *http1.Request, respond func(status int, headers []http1.ResponseHeader, body []byte)) {
	sr := &Request{
		Method:  req.Method.String(),
		Path:    string(req.Path),
		Query:   string(req.Query),
		Headers: headerFromHTTP1(req),
		Body:    append([]byte(nil), req.Body...),
	}

	c.Handler(sr, func(status int, headers Header, body []byte) {
		c.Stats.onRequest("http1", status)
		respond(status, headersToHTTP1(headers), body)
	})
}

func headerFromHTTP1(req *http1.Request) Header {
	h := make(Header, 0, req.HeaderCount)
	for i := 0; i < req.HeaderCount; i++ {
		f := req.Headers[i]
		h = append(h, HeaderField{Name: string(f.Name), Value: string(f.Value)})
	}
	return h
}

func headersToHTTP1(h Header) []http1.ResponseHeader {
	if len(h) == 0 {
		return nil
	}
	out := make([]http1.ResponseHeader, len(h))
	for i, f := range h {
		out[i] = http1.ResponseHeader{Name: f.Name, Value: f.Value}
	}
	return out
}
