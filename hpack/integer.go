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

// maxIntegerShift bounds how many continuation bytes DecodeInteger will
// consume before declaring the value too large to fit a uint64, matching
// the original's 64-bit overflow guard.
const maxIntegerShift = 63

// EncodeInteger appends the RFC 7541 §5.1 encoding of value to dst, using
// the low prefixBits of dst's next byte (already OR-ed into prefix) to
// hold the first part of the value. prefixBits must be in [1,8].
//
// prefix carries any leading flag bits already set in the top bits of the
// first octet (e.g. the Huffman bit or a representation's leading bits);
// EncodeInteger only ever touches the low prefixBits of that first octet.
func EncodeInteger(dst []byte, prefixBits uint, prefix byte, value uint64) []byte {
	max := uint64(1)<<prefixBits - 1

	if value < max {
		return append(dst, prefix|byte(value))
	}

	dst = append(dst, prefix|byte(max))
	value -= max

	for value >= 0x80 {
		dst = append(dst, byte(value&0x7f)|0x80)
		value >>= 7
	}

	return append(dst, byte(value))
}

// DecodeInteger reads an RFC 7541 §5.1 integer from the low prefixBits of
// input[0] plus any continuation bytes, returning the decoded value and
// the number of bytes consumed from input.
func DecodeInteger(input []byte, prefixBits uint) (value uint64, consumed int, err error) {
	if len(input) == 0 {
		return 0, 0, ErrorTruncatedInput.Error(nil)
	}

	max := uint64(1)<<prefixBits - 1
	value = uint64(input[0]) & max

	if value < max {
		return value, 1, nil
	}

	var shift uint
	i := 1

	for {
		if i >= len(input) {
			return 0, 0, ErrorTruncatedInput.Error(nil)
		}

		b := input[i]
		i++

		if shift > maxIntegerShift {
			return 0, 0, ErrorIntegerOverflow.Error(nil)
		}

		value += uint64(b&0x7f) << shift

		if b&0x80 == 0 {
			return value, i, nil
		}

		shift += 7
	}
}
