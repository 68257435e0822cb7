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

// Request is the protocol-agnostic view of one HTTP request handed to the
// process-wide Handler, whether it arrived over HTTP/1.1 or HTTP/2.
// Headers is case-insensitively addressable via Header.
type Request struct {
	Method  string
	Path    string
	Query   string
	Headers Header
	Body    []byte

	// Params carries path parameters captured by a router match, when the
	// request was dispatched through a Dispatcher. It is nil for requests
	// delivered straight to a Config.Handler with no routing layer.
	Params *Param
}

// Param is one captured path parameter, mirroring router.Param without
// requiring every caller of server.Request to import the router package.
type Param struct {
	Key   string
	Value string
}

// ResponseFunc emits exactly one response for the request it was handed;
// calling it more than once, or not at all, is a handler bug. It is safe
// to call from any thread, though in practice it always runs synchronously
// on the connection's own reactor goroutine, since a connection never
// migrates workers for its lifetime.
type ResponseFunc func(status int, headers Header, body []byte)

// Handler is the single process-wide entry point for request dispatch, per
// spec.md §4.9/§6: (method, path, headers, body, send_response).
type Handler func(req *Request, respond ResponseFunc)

// Header is an ordered, case-insensitively addressable header list. Unlike
// a map[string]string it preserves insertion order and allows repeated
// names, matching what both http1.ResponseHeader and http2's
// map[string]string response path need to produce.
type Header []HeaderField

// HeaderField is one name/value pair.
type HeaderField struct {
	Name  string
	Value string
}

// Get returns the first value matching name, case-insensitively.
func (h Header) Get(name string) (string, bool) {
	for _, f := range h {
		if strEqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Add appends a header field, preserving any existing one with the same
// name.
func (h Header) Add(name, value string) Header {
	return append(h, HeaderField{Name: name, Value: value})
}

func strEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
