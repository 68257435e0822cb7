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

package ringbuf

import (
	"encoding/binary"
	"sync/atomic"
)

const (
	// DefaultMaxMessageSize bounds a single claimed message.
	DefaultMaxMessageSize = 64 * 1024
	// DefaultBufferSize is the total backing store for a Message buffer.
	DefaultBufferSize = 1024 * 1024

	frameHeaderLen = 4
	// padMarker is written in the length field when a claim is padded to
	// the end of the buffer instead of wrapping mid-frame; the reader
	// treats it as "skip to offset 0".
	padMarker = 0xFFFFFFFF
)

// Message is a byte-oriented SPSC ring buffer for length-prefixed messages,
// modeled on Aeron-style claim/commit framing: a producer claims a writable
// slice, fills it, and commits the actual length; a consumer reads the next
// complete frame as a zero-copy view into the backing array. Wrap-around at
// the end of the buffer is handled by writing a pad frame so message
// boundaries are always preserved.
type Message struct {
	writePos uint64
	_        cacheLinePad
	readPos  uint64
	_        cacheLinePad

	buf          []byte
	maxMessage   int
	claimedAt    int
	claimedSize  int
}

// NewMessage allocates a Message buffer of the given total size with the
// given per-message cap. Zero values fall back to the package defaults.
func NewMessage(bufferSize, maxMessageSize int) *Message {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}

	return &Message{
		buf:        make([]byte, bufferSize),
		maxMessage: maxMessageSize,
	}
}

// Claim reserves up to size bytes of writable space and returns the slice to
// fill, or nil if there isn't enough free room or size exceeds the
// configured maximum. Only one claim may be outstanding at a time.
func (m *Message) Claim(size int) []byte {
	if size <= 0 || size > m.maxMessage {
		return nil
	}

	need := frameHeaderLen + size
	w := int(atomic.LoadUint64(&m.writePos)) % len(m.buf)
	r := int(atomic.LoadUint64(&m.readPos)) % len(m.buf)
	free := m.freeBytes(w, r)

	// Pad to the end of the buffer if the frame would wrap mid-payload.
	tail := len(m.buf) - w
	if tail < need && tail >= frameHeaderLen {
		if free < tail+need {
			return nil
		}

		binary.LittleEndian.PutUint32(m.buf[w:], padMarker)
		atomic.AddUint64(&m.writePos, uint64(tail))

		w = 0
		free -= tail
	} else if tail < frameHeaderLen {
		if free < tail+need {
			return nil
		}

		atomic.AddUint64(&m.writePos, uint64(tail))
		w = 0
		free -= tail
	}

	if free < need {
		return nil
	}

	m.claimedAt = w
	m.claimedSize = size

	return m.buf[w+frameHeaderLen : w+frameHeaderLen+size]
}

// Commit publishes the previously claimed message with its actual written
// length k (k <= the size passed to Claim). The frame becomes visible to the
// reader with release semantics.
func (m *Message) Commit(k int) {
	if k < 0 {
		k = 0
	}
	if k > m.claimedSize {
		k = m.claimedSize
	}

	binary.LittleEndian.PutUint32(m.buf[m.claimedAt:], uint32(k))
	atomic.AddUint64(&m.writePos, uint64(frameHeaderLen+k))
}

// Read returns the next complete message as a view into the backing buffer,
// or (nil, false) if no full frame is available yet. The returned slice is
// valid only until the next Read call reclaims that region.
func (m *Message) Read() ([]byte, bool) {
	for {
		w := int(atomic.LoadUint64(&m.writePos))
		r := int(atomic.LoadUint64(&m.readPos))

		if r >= w {
			return nil, false
		}

		ro := r % len(m.buf)
		if len(m.buf)-ro < frameHeaderLen {
			atomic.AddUint64(&m.readPos, uint64(len(m.buf)-ro))
			continue
		}

		length := binary.LittleEndian.Uint32(m.buf[ro:])
		if length == padMarker {
			atomic.AddUint64(&m.readPos, uint64(len(m.buf)-ro))
			continue
		}

		start := ro + frameHeaderLen
		end := start + int(length)
		atomic.AddUint64(&m.readPos, uint64(frameHeaderLen+int(length)))

		return m.buf[start:end], true
	}
}

// Available returns the number of unread bytes (header-inclusive) currently
// queued.
func (m *Message) Available() int {
	w := atomic.LoadUint64(&m.writePos)
	r := atomic.LoadUint64(&m.readPos)
	return int(w - r)
}

func (m *Message) freeBytes(w, r int) int {
	used := int(atomic.LoadUint64(&m.writePos) - atomic.LoadUint64(&m.readPos))
	return len(m.buf) - used
}
