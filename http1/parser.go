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

import (
	"bytes"
	"strconv"

	liberr "github.com/nabbar/httpcore/errors"
)

var crlf = []byte("\r\n")

// maxLineLen bounds the request line and any single header line before
// its terminator has been seen, so a peer cannot force unbounded buffer
// growth by never sending a CRLF.
const maxLineLen = 8192

// Result is the outcome of one Parser.Parse call.
type Result uint8

const (
	ResultNeedMore Result = iota
	ResultComplete
	ResultError
)

type parseState uint8

const (
	stateStart parseState = iota
	stateMethod
	stateURL
	stateVersion
	stateHeaderField
	stateHeaderValue
	stateBody
	stateComplete
	stateError
)

// Parser is a resumable HTTP/1 request-line-plus-headers-plus-body state
// machine. It holds no heap-allocated buffer of its own for the request
// line and headers: every Request field it fills is a view into the
// caller's data slice. Construct with NewParser and reuse across requests
// on a keep-alive connection via Reset.
type Parser struct {
	state parseState
	pos   int

	headerName []byte

	bodyStart   int
	bodyNeeded  uint64
	chunk       chunkDecoder
	chunkBuffer []byte
}

// NewParser returns a Parser ready to parse its first request.
func NewParser() *Parser {
	return &Parser{state: stateStart}
}

// Reset prepares the parser for the next request on the same connection.
func (p *Parser) Reset() {
	p.state = stateStart
	p.pos = 0
	p.headerName = nil
	p.bodyStart = 0
	p.bodyNeeded = 0
	p.chunk.reset()
	p.chunkBuffer = nil
}

// IsComplete reports whether the last Parse call reached Complete.
func (p *Parser) IsComplete() bool { return p.state == stateComplete }

// HasError reports whether the parser is stuck in a terminal error state.
func (p *Parser) HasError() bool { return p.state == stateError }

// Parse advances the state machine over data, which must be the entire
// buffer accumulated for this request so far (starting at offset 0; the
// parser tracks its own position into it). On ResultComplete, consumed is
// the number of leading bytes of data that made up this request; the
// caller passes data[consumed:] as the start of the next request after
// calling Reset. On ResultNeedMore, nothing has been consumed yet and the
// caller must read more bytes and call Parse again with the grown buffer.
func (p *Parser) Parse(data []byte, req *Request) (consumed int, result Result, err error) {
	if p.state == stateStart {
		req.reset()
		p.pos = 0
		p.state = stateMethod
	}

	for {
		switch p.state {
		case stateMethod:
			idx := bytes.IndexByte(data[p.pos:], ' ')
			if idx < 0 {
				if len(data)-p.pos > maxLineLen {
					return p.fail(ErrorRequestLineTooLong)
				}
				return 0, ResultNeedMore, nil
			}
			req.MethodRaw = data[p.pos : p.pos+idx]
			req.Method = methodFromBytes(req.MethodRaw)
			p.pos += idx + 1
			p.state = stateURL

		case stateURL:
			idx := bytes.IndexByte(data[p.pos:], ' ')
			if idx < 0 {
				if len(data)-p.pos > maxLineLen {
					return p.fail(ErrorRequestLineTooLong)
				}
				return 0, ResultNeedMore, nil
			}
			if idx == 0 {
				return p.fail(ErrorMalformedRequestLine)
			}
			req.URL = data[p.pos : p.pos+idx]
			parseURLComponents(req)
			p.pos += idx + 1
			p.state = stateVersion

		case stateVersion:
			idx := bytes.Index(data[p.pos:], crlf)
			if idx < 0 {
				if len(data)-p.pos > maxLineLen {
					return p.fail(ErrorRequestLineTooLong)
				}
				return 0, ResultNeedMore, nil
			}
			v, ok := parseVersion(data[p.pos : p.pos+idx])
			if !ok {
				return p.fail(ErrorUnsupportedVersion)
			}
			req.Version = v
			p.pos += idx + 2
			p.state = stateHeaderField

		case stateHeaderField:
			rest := data[p.pos:]
			if len(rest) >= 2 && bytes.Equal(rest[:2], crlf) {
				p.pos += 2
				if ferr := finalizeHeaders(req); ferr != nil {
					return p.fail(ErrorMalformedHeader)
				}
				if req.Chunked {
					p.chunk.reset()
					p.state = stateBody
					break
				}
				if req.HasContentLength && req.ContentLength > 0 {
					p.bodyStart = p.pos
					p.bodyNeeded = req.ContentLength
					p.state = stateBody
					break
				}
				p.state = stateComplete
				return p.pos, ResultComplete, nil
			}
			if len(rest) == 0 {
				return 0, ResultNeedMore, nil
			}

			idx := bytes.IndexByte(rest, ':')
			if idx < 0 {
				if crlfIdx := bytes.Index(rest, crlf); crlfIdx >= 0 {
					return p.fail(ErrorMalformedHeader)
				}
				if len(rest) > maxLineLen {
					return p.fail(ErrorMalformedHeader)
				}
				return 0, ResultNeedMore, nil
			}
			p.headerName = rest[:idx]
			p.pos += idx + 1
			p.state = stateHeaderValue

		case stateHeaderValue:
			rest := data[p.pos:]
			idx := bytes.Index(rest, crlf)
			if idx < 0 {
				if len(rest) > maxLineLen {
					return p.fail(ErrorMalformedHeader)
				}
				return 0, ResultNeedMore, nil
			}
			value := bytes.TrimSpace(rest[:idx])
			if req.HeaderCount >= MaxHeaders {
				return p.fail(ErrorTooManyHeaders)
			}
			req.addHeader(p.headerName, value)
			p.pos += idx + 2
			p.state = stateHeaderField

		case stateBody:
			if req.Chunked {
				n, done, cErr := p.chunk.feed(data[p.pos:])
				p.pos += n
				if cErr != nil {
					return p.fail(ErrorChunkedEncoding)
				}
				if !done {
					return 0, ResultNeedMore, nil
				}
				p.chunkBuffer = p.chunk.body.Bytes()
				req.Body = p.chunkBuffer
				p.state = stateComplete
				return p.pos, ResultComplete, nil
			}

			have := len(data) - p.bodyStart
			if uint64(have) < p.bodyNeeded {
				return 0, ResultNeedMore, nil
			}
			req.Body = data[p.bodyStart : p.bodyStart+int(p.bodyNeeded)]
			p.pos = p.bodyStart + int(p.bodyNeeded)
			p.state = stateComplete
			return p.pos, ResultComplete, nil

		case stateComplete:
			return p.pos, ResultComplete, nil

		case stateError:
			return 0, ResultError, ErrorConnectionClosed.Error(nil)
		}
	}
}

func (p *Parser) fail(code liberr.CodeError) (int, Result, error) {
	p.state = stateError
	return 0, ResultError, code.Error(nil)
}

func parseVersion(b []byte) (Version, bool) {
	switch string(b) {
	case "HTTP/1.1":
		return Version11, true
	case "HTTP/1.0":
		return Version10, true
	default:
		return VersionUnknown, false
	}
}

func parseURLComponents(req *Request) {
	u := req.URL
	req.Path = u
	req.Query = nil
	req.Fragment = nil

	if frag := bytes.IndexByte(u, '#'); frag >= 0 {
		req.Fragment = u[frag+1:]
		u = u[:frag]
	}
	if q := bytes.IndexByte(u, '?'); q >= 0 {
		req.Query = u[q+1:]
		u = u[:q]
	}
	req.Path = u
}

// finalizeHeaders derives content-length/chunked/keep-alive/upgrade from
// the already-collected header set, once the blank line ending the
// header block has been seen.
func finalizeHeaders(req *Request) error {
	req.KeepAlive = req.Version == Version11

	if te, ok := req.GetHeader("Transfer-Encoding"); ok {
		if containsToken(te, "chunked") {
			req.Chunked = true
			req.HasContentLength = false
			req.ContentLength = 0
		}
	}

	if !req.Chunked {
		if cl, ok := req.GetHeader("Content-Length"); ok {
			n, err := strconv.ParseUint(string(bytes.TrimSpace(cl)), 10, 64)
			if err != nil {
				return ErrorMalformedHeader.Error(nil)
			}
			req.ContentLength = n
			req.HasContentLength = true
		}
	}

	upgradeRequested := false
	if conn, ok := req.GetHeader("Connection"); ok {
		if containsToken(conn, "keep-alive") {
			req.KeepAlive = true
		}
		if containsToken(conn, "close") {
			req.KeepAlive = false
		}
		if containsToken(conn, "upgrade") {
			upgradeRequested = true
		}
	}

	if upgradeRequested {
		if proto, ok := req.GetHeader("Upgrade"); ok {
			req.Upgrade = true
			req.UpgradeProtocol = proto
		}
	}

	return nil
}

func containsToken(header []byte, token string) bool {
	for _, part := range bytes.Split(header, []byte(",")) {
		if strEqCI(bytes.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
