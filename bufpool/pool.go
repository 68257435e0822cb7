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

package bufpool

import "sync"

// Pool hands out fixed-size []byte buffers and reclaims them on Put. It
// wraps sync.Pool so the underlying allocator can reuse buffers across GC
// cycles without a per-get/put lock.
type Pool struct {
	size int
	pool sync.Pool
}

// New creates a Pool whose Get always returns slices of exactly size bytes
// (len == cap == size).
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() interface{} {
		return make([]byte, size)
	}

	return p
}

// Get returns a buffer of the pool's configured size. The contents are not
// zeroed; callers that care must clear what they use.
func (p *Pool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns buf to the pool. Buffers of the wrong length are dropped
// rather than poisoning the pool with mismatched sizes.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}

	p.pool.Put(buf[:p.size])
}

// Size returns the fixed buffer size this pool was configured with.
func (p *Pool) Size() int {
	return p.size
}
