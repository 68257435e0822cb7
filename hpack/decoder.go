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

// DefaultMaxHeaders bounds how many header fields a single Decode call
// will produce unless the caller asks for a different limit.
const DefaultMaxHeaders = 100

// Decoder turns HPACK-coded header blocks into Header slices, maintaining
// the dynamic table across calls for the lifetime of one HTTP/2
// connection (one Decoder per connection, not per stream).
type Decoder struct {
	dynamic        *DynamicTable
	maxTableSize   int
	maxHeaderCount int
}

// NewDecoder returns a Decoder with a fresh dynamic table.
func NewDecoder() *Decoder {
	return &Decoder{
		dynamic:        NewDynamicTable(),
		maxTableSize:   DefaultDynamicTableSize,
		maxHeaderCount: DefaultMaxHeaders,
	}
}

// SetMaxTableSize sets the upper bound a peer's dynamic table size update
// may request, mirroring the value this endpoint advertised via
// SETTINGS_HEADER_TABLE_SIZE.
func (d *Decoder) SetMaxTableSize(max int) {
	d.maxTableSize = max
	if d.dynamic.MaxSize() > max {
		d.dynamic.SetMaxSize(max)
	}
}

// SetMaxHeaderCount overrides DefaultMaxHeaders.
func (d *Decoder) SetMaxHeaderCount(n int) {
	d.maxHeaderCount = n
}

// TableSize reports the dynamic table's current accounted size.
func (d *Decoder) TableSize() int {
	return d.dynamic.Size()
}

// Decode parses one complete header block, RFC 7541 §6, dispatching each
// representation by its leading bits: indexed field (1xxxxxxx), literal
// with incremental indexing (01xxxxxx), dynamic table size update
// (001xxxxx), literal never indexed (0001xxxx), and literal without
// indexing (0000xxxx).
func (d *Decoder) Decode(input []byte) ([]Header, error) {
	var out []Header

	for len(input) > 0 {
		b := input[0]

		switch {
		case b&0x80 != 0:
			h, n, err := d.decodeIndexed(input)
			if err != nil {
				return nil, err
			}
			out = append(out, h)
			input = input[n:]

		case b&0x40 != 0:
			h, n, err := d.decodeLiteral(input, 6, true)
			if err != nil {
				return nil, err
			}
			out = append(out, h)
			input = input[n:]

		case b&0x20 != 0:
			n, err := d.decodeTableSizeUpdate(input)
			if err != nil {
				return nil, err
			}
			input = input[n:]
			continue

		case b&0x10 != 0:
			h, n, err := d.decodeLiteral(input, 4, false)
			if err != nil {
				return nil, err
			}
			h.Sensitive = true
			out = append(out, h)
			input = input[n:]

		default:
			h, n, err := d.decodeLiteral(input, 4, false)
			if err != nil {
				return nil, err
			}
			out = append(out, h)
			input = input[n:]
		}

		if len(out) > d.maxHeaderCount {
			return nil, ErrorTooManyHeaders.Error(nil)
		}
	}

	return out, nil
}

func (d *Decoder) decodeIndexed(input []byte) (Header, int, error) {
	index, n, err := DecodeInteger(input, 7)
	if err != nil {
		return Header{}, 0, err
	}
	if index == 0 {
		return Header{}, 0, ErrorInvalidIndex.Error(nil)
	}

	h, ok := d.lookup(int(index))
	if !ok {
		return Header{}, 0, ErrorInvalidIndex.Error(nil)
	}

	return h, n, nil
}

// decodeLiteral handles the three literal representations; they differ
// only in prefix width and whether the result is added to the dynamic
// table.
func (d *Decoder) decodeLiteral(input []byte, prefixBits uint, index bool) (Header, int, error) {
	nameIndex, n, err := DecodeInteger(input, prefixBits)
	if err != nil {
		return Header{}, 0, err
	}

	var name string
	if nameIndex != 0 {
		h, ok := d.lookup(int(nameIndex))
		if !ok {
			return Header{}, 0, ErrorInvalidIndex.Error(nil)
		}
		name = h.Name
	} else {
		s, consumed, sErr := decodeString(input[n:])
		if sErr != nil {
			return Header{}, 0, sErr
		}
		name = s
		n += consumed
	}

	value, consumed, vErr := decodeString(input[n:])
	if vErr != nil {
		return Header{}, 0, vErr
	}
	n += consumed

	h := Header{Name: name, Value: value}

	if index {
		d.dynamic.Add(h)
	}

	return h, n, nil
}

func (d *Decoder) decodeTableSizeUpdate(input []byte) (int, error) {
	size, n, err := DecodeInteger(input, 5)
	if err != nil {
		return 0, err
	}
	if int(size) > d.maxTableSize {
		return 0, ErrorTableSizeUpdate.Error(nil)
	}

	d.dynamic.SetMaxSize(int(size))

	return n, nil
}

// lookup resolves a combined static/dynamic wire index per RFC 7541 §2.3.3.
func (d *Decoder) lookup(index int) (Header, bool) {
	if index <= StaticTableSize {
		return StaticGet(index)
	}
	return d.dynamic.Get(index - StaticTableSize)
}
