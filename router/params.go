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

package router

// maxParams bounds the param slice a single match can ever need: no path
// pattern can nest more named-or-wildcard segments than this without being
// rejected at registration time, which keeps Params a fixed-capacity,
// stack-friendly slice.
const maxParams = 32

// Param is one path parameter extracted during a match.
type Param struct {
	Key   string
	Value string
}

// Params is the fixed-capacity parameter collection filled in by Match.
// The zero value is ready to use; callers on a hot path should reuse one
// Params per goroutine across calls via Reset instead of allocating a new
// one per request.
type Params struct {
	values [maxParams]Param
	n      int
}

// Reset empties p for reuse without releasing its backing array.
func (p *Params) Reset() {
	p.n = 0
}

func (p *Params) add(key, value string) bool {
	if p.n >= maxParams {
		return false
	}
	p.values[p.n] = Param{Key: key, Value: value}
	p.n++
	return true
}

// Get returns the value for key, and whether it was present.
func (p *Params) Get(key string) (string, bool) {
	for i := 0; i < p.n; i++ {
		if p.values[i].Key == key {
			return p.values[i].Value, true
		}
	}
	return "", false
}

// Len is the number of parameters captured by the last match.
func (p *Params) Len() int {
	return p.n
}

// At returns the i-th captured parameter.
func (p *Params) At(i int) Param {
	return p.values[i]
}
