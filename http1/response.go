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

import "strconv"

// ResponseHeader is one caller-supplied response header; unlike HeaderField
// it owns its strings, since responses are built by the handler rather
// than parsed off the wire.
type ResponseHeader struct {
	Name  string
	Value string
}

var statusText = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

// StatusText returns the reason phrase for a status code, or "Unknown"
// for a code this package does not recognize by name.
func StatusText(code int) string {
	if t, ok := statusText[code]; ok {
		return t
	}
	return "Unknown"
}

// AppendResponse appends the wire form of one HTTP/1 response to dst:
// status line, caller headers, a computed Content-Length, a Connection
// header reflecting keepAlive, the blank line, then body. It never sets
// Transfer-Encoding; chunked responses are outside this package's
// Non-goals (the connection driver only ever emits fixed-length bodies).
func AppendResponse(dst []byte, version Version, status int, headers []ResponseHeader, body []byte, keepAlive bool) []byte {
	dst = append(dst, version.String()...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(status), 10)
	dst = append(dst, ' ')
	dst = append(dst, StatusText(status)...)
	dst = append(dst, crlf...)

	hasConnection := false
	for _, h := range headers {
		if strEqCI([]byte(h.Name), "Connection") {
			hasConnection = true
		}
		dst = append(dst, h.Name...)
		dst = append(dst, ':', ' ')
		dst = append(dst, h.Value...)
		dst = append(dst, crlf...)
	}

	if !hasConnection {
		dst = append(dst, "Connection: "...)
		if keepAlive {
			dst = append(dst, "keep-alive"...)
		} else {
			dst = append(dst, "close"...)
		}
		dst = append(dst, crlf...)
	}

	dst = append(dst, "Content-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(body)), 10)
	dst = append(dst, crlf...)

	dst = append(dst, crlf...)
	dst = append(dst, body...)

	return dst
}
