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

import "sync/atomic"

// cacheLinePad absorbs the remainder of a 64-byte cache line after a single
// atomic counter, so producer and consumer positions never share a line.
type cacheLinePad [7]uint64

// SPSC is a bounded, lock-free, single-producer/single-consumer queue of
// connections (net.Conn-sized fd handles, as file descriptors boxed into
// interface{} by the acceptor). Capacity is rounded up to a power of two.
// This is the "one bounded queue per worker" primitive used by the
// non-SO_REUSEPORT listener acceptor-fanout path.
type SPSC struct {
	writePos uint64
	_        cacheLinePad
	readPos  uint64
	_        cacheLinePad

	mask uint64
	buf  []interface{}
}

// NewSPSC allocates a queue with capacity rounded up to the next power of
// two, minimum 2.
func NewSPSC(capacity int) *SPSC {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}

	return &SPSC{
		mask: uint64(n - 1),
		buf:  make([]interface{}, n),
	}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p <<= 1
	}

	return p
}

// TryPush offers item to the queue. Returns false if the queue is full; the
// caller (the acceptor) is expected to close the connection and log a drop
// on backpressure rather than block.
func (q *SPSC) TryPush(item interface{}) bool {
	cur := atomic.LoadUint64(&q.writePos)
	next := cur + 1

	if next-atomic.LoadUint64(&q.readPos) > uint64(len(q.buf)) {
		return false
	}

	q.buf[cur&q.mask] = item
	atomic.StoreUint64(&q.writePos, next)

	return true
}

// TryPop retrieves the oldest item. Returns (nil, false) if the queue is
// empty.
func (q *SPSC) TryPop() (interface{}, bool) {
	cur := atomic.LoadUint64(&q.readPos)

	if cur >= atomic.LoadUint64(&q.writePos) {
		return nil, false
	}

	item := q.buf[cur&q.mask]
	q.buf[cur&q.mask] = nil
	atomic.StoreUint64(&q.readPos, cur+1)

	return item, true
}

// Len returns the number of items currently queued.
func (q *SPSC) Len() int {
	w := atomic.LoadUint64(&q.writePos)
	r := atomic.LoadUint64(&q.readPos)
	return int(w - r)
}

// Cap returns the queue's fixed capacity.
func (q *SPSC) Cap() int {
	return len(q.buf)
}

// Empty reports whether the queue currently holds no items.
func (q *SPSC) Empty() bool {
	return q.Len() == 0
}

// Full reports whether the queue is at capacity.
func (q *SPSC) Full() bool {
	return q.Len() >= len(q.buf)
}
