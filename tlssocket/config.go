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

	"github.com/nabbar/httpcore/certificates"
)

// ProtoH2 and ProtoHTTP11 are the ALPN protocol ids this package negotiates,
// in preference order.
const (
	ProtoH2     = "h2"
	ProtoHTTP11 = "http/1.1"
)

// DefaultALPNProtocols is the negotiation order NewALPNConfig applies when
// the caller does not supply its own list: prefer HTTP/2, fall back to
// HTTP/1.1.
var DefaultALPNProtocols = []string{ProtoH2, ProtoHTTP11}

// NewALPNConfig derives a *tls.Config from cfg with NextProtos set for ALPN
// negotiation. certificates.TLSConfig has no ALPN concept of its own, so the
// protocol list is layered on here, on the live config TLS() returns.
func NewALPNConfig(cfg certificates.TLSConfig, serverName string, protocols []string) (*tls.Config, error) {
	if cfg == nil {
		return nil, ErrorNilTLSConfig.Error(nil)
	}

	if len(protocols) == 0 {
		protocols = DefaultALPNProtocols
	}

	out := cfg.TLS(serverName)
	out.NextProtos = protocols

	return out, nil
}

// NegotiatedIsH2 reports whether the ALPN protocol negotiated by sock is h2.
func NegotiatedIsH2(sock *Socket) bool {
	return sock.Negotiated() == ProtoH2
}
