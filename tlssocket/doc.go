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

// Package tlssocket bridges crypto/tls's synchronous Conn to a non-blocking,
// reactor-driven socket. A Socket owns an in-memory duplex pair (bioConn)
// standing in for the peer: the reactor thread feeds ciphertext it read off
// the real network socket into the Socket and drains ciphertext the TLS
// engine wants to send, while a dedicated goroutine runs the handshake and
// the plaintext Read loop against crypto/tls, exactly the way an OpenSSL
// memory-BIO based socket decouples network I/O from the TLS state machine.
//
// ALPN negotiation rides on the *tls.Config passed in; NewALPNConfig builds
// one from a certificates.TLSConfig with NextProtos set for h2/http/1.1
// negotiation.
package tlssocket
