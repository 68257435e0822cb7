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

// ConnPool is a single-threaded buffer recycler scoped to one connection's
// reactor thread: no lock is needed since a connection never migrates
// between workers (spec: "work is sharded by connection ... for life").
type ConnPool struct {
	size int
	free [][]byte
}

// NewConnPool creates a per-connection pool that grows lazily and caps its
// free list at maxFree idle buffers.
func NewConnPool(size, maxFree int) *ConnPool {
	if maxFree <= 0 {
		maxFree = 4
	}

	return &ConnPool{
		size: size,
		free: make([][]byte, 0, maxFree),
	}
}

// Get returns a buffer of the pool's fixed size, reusing a freed one if
// available.
func (c *ConnPool) Get() []byte {
	if n := len(c.free); n > 0 {
		buf := c.free[n-1]
		c.free = c.free[:n-1]
		return buf
	}

	return make([]byte, c.size)
}

// Put returns buf for reuse if the free list has room and the buffer
// matches this pool's size; otherwise it is left for the garbage collector.
func (c *ConnPool) Put(buf []byte) {
	if cap(buf) != c.size || len(c.free) == cap(c.free) {
		return
	}

	c.free = append(c.free, buf[:c.size])
}
