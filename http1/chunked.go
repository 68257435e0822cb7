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

// chunkPhase tracks where a Transfer-Encoding: chunked body decode sits
// between chunk-size lines, chunk data, and the trailer.
type chunkPhase uint8

const (
	chunkPhaseSize chunkPhase = iota
	chunkPhaseData
	chunkPhaseDataCRLF
	chunkPhaseTrailer
	chunkPhaseDone
)

// chunkDecoder accumulates the dechunked body into its own buffer since,
// unlike a fixed Content-Length body, chunk framing is not contiguous in
// the connection's read buffer: chunk-size lines and trailing CRLFs must
// be stripped out, so the result cannot be a zero-copy view.
type chunkDecoder struct {
	phase     chunkPhase
	remaining uint64
	body      bytes.Buffer
}

func (c *chunkDecoder) reset() {
	c.phase = chunkPhaseSize
	c.remaining = 0
	c.body.Reset()
}

// feed consumes as much of data as forms complete chunk framing, appending
// decoded bytes to c.body. It returns the number of bytes of data consumed
// and whether the terminating zero-length chunk (plus empty trailer) has
// been seen.
func (c *chunkDecoder) feed(data []byte) (consumed int, done bool, err error) {
	pos := 0

	for {
		switch c.phase {
		case chunkPhaseSize:
			idx := bytes.Index(data[pos:], crlf)
			if idx < 0 {
				return pos, false, nil
			}
			line := data[pos : pos+idx]
			if semi := bytes.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi]
			}
			n, pErr := parseChunkSize(line)
			if pErr != nil {
				return pos, false, pErr
			}
			pos += idx + 2
			c.remaining = n
			if n == 0 {
				c.phase = chunkPhaseTrailer
			} else {
				c.phase = chunkPhaseData
			}

		case chunkPhaseData:
			avail := len(data) - pos
			if uint64(avail) < c.remaining {
				c.body.Write(data[pos:])
				c.remaining -= uint64(avail)
				return len(data), false, nil
			}
			c.body.Write(data[pos : pos+int(c.remaining)])
			pos += int(c.remaining)
			c.remaining = 0
			c.phase = chunkPhaseDataCRLF

		case chunkPhaseDataCRLF:
			if len(data)-pos < 2 {
				return pos, false, nil
			}
			if !bytes.Equal(data[pos:pos+2], crlf) {
				return pos, false, ErrorChunkedEncoding.Error(nil)
			}
			pos += 2
			c.phase = chunkPhaseSize

		case chunkPhaseTrailer:
			idx := bytes.Index(data[pos:], crlf)
			if idx < 0 {
				return pos, false, nil
			}
			if idx == 0 {
				pos += 2
				c.phase = chunkPhaseDone
				return pos, true, nil
			}
			// Trailer headers are parsed but not surfaced; the request
			// struct does not model post-body headers.
			pos += idx + 2

		case chunkPhaseDone:
			return pos, true, nil
		}
	}
}

func parseChunkSize(line []byte) (uint64, error) {
	if len(line) == 0 || len(line) > 16 {
		return 0, ErrorChunkedEncoding.Error(nil)
	}

	var v uint64
	for _, c := range line {
		var digit uint64
		switch {
		case c >= '0' && c <= '9':
			digit = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			digit = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			digit = uint64(c-'A') + 10
		default:
			return 0, ErrorChunkedEncoding.Error(nil)
		}
		v = v<<4 | digit
	}

	return v, nil
}
