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

package reactor

import (
	"container/heap"
	"sync"
	"time"
)

// timerEntry is one scheduled callback, ordered by absolute deadline.
type timerEntry struct {
	id       uint64
	at       time.Time
	handler  func()
	canceled bool
	index    int
}

// timerHeap is a min-heap on (at), implementing container/heap.Interface.
type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// timers is the ordered multimap of absolute-nanosecond deadlines described
// in spec.md §4.1: O(log n) add and cancel by id, fire-in-key-order on each
// tick.
type timers struct {
	mu     sync.Mutex
	heap   timerHeap
	byID   map[uint64]*timerEntry
	nextID uint64
}

func newTimers() *timers {
	return &timers{
		byID: make(map[uint64]*timerEntry),
	}
}

func (t *timers) add(at time.Time, handler func()) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID

	e := &timerEntry{id: id, at: at, handler: handler}
	t.byID[id] = e
	heap.Push(&t.heap, e)

	return id
}

func (t *timers) cancel(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.byID[id]; ok {
		e.canceled = true
		delete(t.byID, id)
	}
}

// nextDeadline returns the nearest pending deadline, or the zero Time if no
// timer is scheduled.
func (t *timers) nextDeadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.heap.Len() > 0 && t.heap[0].canceled {
		heap.Pop(&t.heap)
	}

	if t.heap.Len() == 0 {
		return time.Time{}, false
	}

	return t.heap[0].at, true
}

// fireDue pops and runs every timer whose deadline is <= now, in deadline
// order, returning how many fired.
func (t *timers) fireDue(now time.Time) int {
	var due []func()

	t.mu.Lock()
	for t.heap.Len() > 0 {
		head := t.heap[0]
		if head.canceled {
			heap.Pop(&t.heap)
			continue
		}
		if head.at.After(now) {
			break
		}

		heap.Pop(&t.heap)
		delete(t.byID, head.id)
		due = append(due, head.handler)
	}
	t.mu.Unlock()

	for _, h := range due {
		h()
	}

	return len(due)
}
