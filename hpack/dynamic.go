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

package hpack

// DefaultDynamicTableSize is the RFC 7541 §4.2 default maximum size, in
// the §4.1 accounting units, of a fresh dynamic table.
const DefaultDynamicTableSize = 4096

// MaxDynamicTableEntries bounds how many entries DynamicTable will ever
// hold regardless of the negotiated byte budget, so a peer cannot force
// unbounded slice growth with a flood of empty headers.
const MaxDynamicTableEntries = 128

// DynamicTable is the per-connection HPACK dynamic table, RFC 7541 §2.3.2:
// a FIFO of the most recently inserted headers, evicted oldest-first once
// the accounted size exceeds maxSize. entries is kept newest-first so that
// wire index 62 (the first dynamic entry) is always entries[0].
type DynamicTable struct {
	entries []Header
	size    int
	maxSize int
}

// NewDynamicTable returns a table bounded by DefaultDynamicTableSize.
func NewDynamicTable() *DynamicTable {
	return &DynamicTable{maxSize: DefaultDynamicTableSize}
}

// Add inserts h as the newest entry, evicting older entries until the
// table fits within its current max size. A header larger than the whole
// table's budget empties the table instead of being stored, per §4.4.
func (d *DynamicTable) Add(h Header) {
	need := h.size()

	d.evictToFit(d.maxSize - need)

	if need > d.maxSize {
		return
	}

	d.entries = append([]Header{h}, d.entries...)
	d.size += need

	if len(d.entries) > MaxDynamicTableEntries {
		last := d.entries[len(d.entries)-1]
		d.entries = d.entries[:len(d.entries)-1]
		d.size -= last.size()
	}
}

// Get returns the dynamic entry for a 1-based dynamic-table index (i.e.
// the caller has already subtracted StaticTableSize from the wire index).
func (d *DynamicTable) Get(index int) (Header, bool) {
	if index < 1 || index > len(d.entries) {
		return Header{}, false
	}
	return d.entries[index-1], true
}

// Find returns the smallest dynamic-table index matching name (and value,
// if nameValueMatch is true) for encoding.
func (d *DynamicTable) Find(name, value string) (index int, nameValueMatch bool) {
	bestName := 0

	for i, e := range d.entries {
		if e.Name != name {
			continue
		}
		if e.Value == value {
			return i + 1, true
		}
		if bestName == 0 {
			bestName = i + 1
		}
	}

	if bestName != 0 {
		return bestName, false
	}

	return 0, false
}

// Size is the current accounted size of the table, RFC 7541 §4.1.
func (d *DynamicTable) Size() int {
	return d.size
}

// MaxSize is the table's current negotiated maximum.
func (d *DynamicTable) MaxSize() int {
	return d.maxSize
}

// Count is the number of entries currently stored.
func (d *DynamicTable) Count() int {
	return len(d.entries)
}

// Clear empties the table without changing its max size.
func (d *DynamicTable) Clear() {
	d.entries = nil
	d.size = 0
}

// SetMaxSize applies a dynamic table size update (RFC 7541 §6.3), evicting
// entries as needed. The caller is responsible for rejecting an update
// that exceeds the value negotiated via SETTINGS_HEADER_TABLE_SIZE before
// calling this.
func (d *DynamicTable) SetMaxSize(max int) {
	d.maxSize = max
	d.evictToFit(max)
}

func (d *DynamicTable) evictToFit(budget int) {
	for d.size > budget && len(d.entries) > 0 {
		last := d.entries[len(d.entries)-1]
		d.entries = d.entries[:len(d.entries)-1]
		d.size -= last.size()
	}
}
