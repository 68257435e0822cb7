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

// Package server wires netsock, listener, http1, http2, tlssocket and
// router into the unified multi-protocol HTTP server described by
// spec.md §4.9: a mandatory-if-enabled TLS listener that ALPN-dispatches
// each connection to HTTP/2 or HTTP/1.1, an optional cleartext HTTP/1.1
// listener, and a reserved UDP listener for a future HTTP/3 driver.
//
// Every accepted connection, whatever its transport or HTTP version, ends
// up calling the same Handler with a protocol-agnostic Request and a
// one-shot ResponseFunc. RouteTable and Dispatcher are an optional layer
// on top of Handler that resolves requests against router.Router.
package server
