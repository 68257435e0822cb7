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

import "github.com/nabbar/httpcore/errors"

const (
	ErrorTruncatedInput errors.CodeError = iota + errors.MinPkgHPACK
	ErrorIntegerOverflow
	ErrorInvalidIndex
	ErrorHuffmanPadding
	ErrorHuffmanInvalidCode
	ErrorTooManyHeaders
	ErrorTableSizeUpdate
	ErrorOutputTooSmall
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorTruncatedInput)
	errors.RegisterIdFctMessage(ErrorTruncatedInput, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorTruncatedInput:
		return "hpack block ends mid-field"
	case ErrorIntegerOverflow:
		return "hpack integer exceeds 64 bits"
	case ErrorInvalidIndex:
		return "hpack index refers to no table entry"
	case ErrorHuffmanPadding:
		return "huffman padding is not all-ones or exceeds 7 bits"
	case ErrorHuffmanInvalidCode:
		return "huffman code does not match any symbol"
	case ErrorTooManyHeaders:
		return "header block exceeds the configured header count limit"
	case ErrorTableSizeUpdate:
		return "dynamic table size update exceeds the negotiated maximum"
	case ErrorOutputTooSmall:
		return "encoder output buffer too small"
	}

	return ""
}
