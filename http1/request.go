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

import "bytes"

// Method is the HTTP/1 request method, decoded from the request line.
type Method uint8

const (
	MethodGet Method = iota
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodPatch
	MethodUnknown Method = 255
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	case MethodConnect:
		return "CONNECT"
	case MethodOptions:
		return "OPTIONS"
	case MethodTrace:
		return "TRACE"
	case MethodPatch:
		return "PATCH"
	default:
		return "UNKNOWN"
	}
}

func methodFromBytes(b []byte) Method {
	switch string(b) {
	case "GET":
		return MethodGet
	case "HEAD":
		return MethodHead
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	case "CONNECT":
		return MethodConnect
	case "OPTIONS":
		return MethodOptions
	case "TRACE":
		return MethodTrace
	case "PATCH":
		return MethodPatch
	default:
		return MethodUnknown
	}
}

// Version is the HTTP version carried on the request line.
type Version uint8

const (
	Version10 Version = iota
	Version11
	VersionUnknown Version = 255
)

func (v Version) String() string {
	switch v {
	case Version10:
		return "HTTP/1.0"
	case Version11:
		return "HTTP/1.1"
	default:
		return "HTTP/1.?"
	}
}

// MaxHeaders bounds how many header fields a single request may carry;
// the 101st header field fails the parse.
const MaxHeaders = 100

// HeaderField is one name/value pair. Both are views into the
// connection's read buffer and are valid only until the next Reset.
type HeaderField struct {
	Name  []byte
	Value []byte
}

// Request is the output of a single Parser.Parse call. Every []byte
// field is a slice of the buffer passed to Parse; nothing here is
// copied or owned.
type Request struct {
	Method    Method
	MethodRaw []byte
	Version   Version

	URL      []byte
	Path     []byte
	Query    []byte
	Fragment []byte

	Headers     [MaxHeaders]HeaderField
	HeaderCount int

	Body []byte

	ContentLength    uint64
	HasContentLength bool
	Chunked          bool

	KeepAlive       bool
	Upgrade         bool
	UpgradeProtocol []byte
}

func (r *Request) reset() {
	r.Method = MethodUnknown
	r.MethodRaw = nil
	r.Version = VersionUnknown
	r.URL = nil
	r.Path = nil
	r.Query = nil
	r.Fragment = nil
	r.HeaderCount = 0
	r.Body = nil
	r.ContentLength = 0
	r.HasContentLength = false
	r.Chunked = false
	r.KeepAlive = false
	r.Upgrade = false
	r.UpgradeProtocol = nil
}

func (r *Request) addHeader(name, value []byte) bool {
	if r.HeaderCount >= MaxHeaders {
		return false
	}
	r.Headers[r.HeaderCount] = HeaderField{Name: name, Value: value}
	r.HeaderCount++
	return true
}

// GetHeader returns the first header matching name, case-insensitively.
func (r *Request) GetHeader(name string) ([]byte, bool) {
	for i := 0; i < r.HeaderCount; i++ {
		if strEqCI(r.Headers[i].Name, name) {
			return r.Headers[i].Value, true
		}
	}
	return nil, false
}

// HasHeader reports whether name is present, case-insensitively.
func (r *Request) HasHeader(name string) bool {
	_, ok := r.GetHeader(name)
	return ok
}

func strEqCI(a []byte, b string) bool {
	return bytes.EqualFold(a, []byte(b))
}
