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

// stringHuffmanBit is the leading flag bit of the Length prefix octet
// (RFC 7541 §5.2) marking the following octets as Huffman-coded.
const stringHuffmanBit = 0x80

// encodeString appends an RFC 7541 §5.2 string literal to dst, choosing
// Huffman coding whenever it is not larger than the raw bytes.
func encodeString(dst []byte, s string) []byte {
	huffLen := HuffmanEncodedLen(s)

	if huffLen < len(s) {
		dst = EncodeInteger(dst, 7, stringHuffmanBit, uint64(huffLen))
		return HuffmanEncode(dst, s)
	}

	dst = EncodeInteger(dst, 7, 0, uint64(len(s)))
	return append(dst, s...)
}

// decodeString reads an RFC 7541 §5.2 string literal from input, returning
// the decoded value and the number of bytes consumed.
func decodeString(input []byte) (value string, consumed int, err error) {
	if len(input) == 0 {
		return "", 0, ErrorTruncatedInput.Error(nil)
	}

	huffman := input[0]&stringHuffmanBit != 0

	length, n, dErr := DecodeInteger(input, 7)
	if dErr != nil {
		return "", 0, dErr
	}

	total := n + int(length)
	if total > len(input) {
		return "", 0, ErrorTruncatedInput.Error(nil)
	}

	raw := input[n:total]

	if !huffman {
		return string(raw), total, nil
	}

	value, hErr := HuffmanDecode(raw)
	if hErr != nil {
		return "", 0, hErr
	}

	return value, total, nil
}
