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

// Encoder turns Header slices into HPACK-coded header blocks, maintaining
// a dynamic table mirroring the peer's Decoder across the connection's
// lifetime.
type Encoder struct {
	dynamic        *DynamicTable
	pendingMaxSize int
	hasPending     bool
}

// NewEncoder returns an Encoder with a fresh dynamic table.
func NewEncoder() *Encoder {
	return &Encoder{dynamic: NewDynamicTable()}
}

// SetMaxTableSize queues a dynamic table size update to be emitted at the
// start of the next Encode call, RFC 7541 §6.3, reacting to a peer's
// SETTINGS_HEADER_TABLE_SIZE change.
func (e *Encoder) SetMaxTableSize(max int) {
	e.pendingMaxSize = max
	e.hasPending = true
}

// TableSize reports the dynamic table's current accounted size.
func (e *Encoder) TableSize() int {
	return e.dynamic.Size()
}

// Encode appends the HPACK coding of headers to dst. Sensitive headers are
// always emitted as literal-never-indexed and are never added to the
// dynamic table; other headers are emitted as an indexed field when an
// exact match exists, else as a literal with incremental indexing.
func (e *Encoder) Encode(dst []byte, headers []Header) []byte {
	if e.hasPending {
		dst = EncodeInteger(dst, 5, 0x20, uint64(e.pendingMaxSize))
		e.dynamic.SetMaxSize(e.pendingMaxSize)
		e.hasPending = false
	}

	for _, h := range headers {
		dst = e.encodeOne(dst, h)
	}

	return dst
}

func (e *Encoder) encodeOne(dst []byte, h Header) []byte {
	if h.Sensitive {
		return e.encodeLiteral(dst, h, 0x10, false)
	}

	if idx, exact := e.dynamicThenStaticFind(h.Name, h.Value); exact {
		return EncodeInteger(dst, 7, 0x80, uint64(idx))
	}

	return e.encodeLiteral(dst, h, 0x40, true)
}

// encodeLiteral writes a literal representation whose leading bits are
// given by flag (0x40 incremental, 0x10 never-indexed, 0x00 without
// indexing), reusing a name index when one is known.
func (e *Encoder) encodeLiteral(dst []byte, h Header, flag byte, addToTable bool) []byte {
	prefixBits := uint(4)
	if flag == 0x40 {
		prefixBits = 6
	}

	nameIndex, _ := e.dynamicThenStaticFind(h.Name, "")

	if nameIndex != 0 {
		dst = EncodeInteger(dst, prefixBits, flag, uint64(nameIndex))
	} else {
		dst = EncodeInteger(dst, prefixBits, flag, 0)
		dst = encodeString(dst, h.Name)
	}

	dst = encodeString(dst, h.Value)

	if addToTable {
		e.dynamic.Add(h)
	}

	return dst
}

// dynamicThenStaticFind prefers a dynamic-table match (the entries most
// likely to repeat within a connection) over the static table, returning a
// combined wire index.
func (e *Encoder) dynamicThenStaticFind(name, value string) (index int, nameValueMatch bool) {
	if idx, exact := e.dynamic.Find(name, value); idx != 0 {
		if exact {
			return idx + StaticTableSize, true
		}
		if si, sExact := StaticFind(name, value); sExact {
			return si, true
		}
		return idx + StaticTableSize, false
	}

	return StaticFind(name, value)
}
