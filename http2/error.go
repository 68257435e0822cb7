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

package http2

import "github.com/nabbar/httpcore/errors"

const (
	ErrorFrameTooShort errors.CodeError = iota + errors.MinPkgHTTP2
	ErrorFrameSizeExceeded
	ErrorInvalidPriorityFrame
	ErrorInvalidRstStreamFrame
	ErrorInvalidSettingsFrame
	ErrorInvalidSettingsValue
	ErrorInvalidPingFrame
	ErrorInvalidGoAwayFrame
	ErrorInvalidWindowUpdateFrame
	ErrorUnknownStream
	ErrorStreamAlreadyExists
	ErrorFlowControlViolation
	ErrorWindowOverflow
	ErrorCompressionFailure
	ErrorPrefaceMismatch
	ErrorConnectionClosed
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorFrameTooShort)
	errors.RegisterIdFctMessage(ErrorFrameTooShort, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorFrameTooShort:
		return "frame header shorter than 9 bytes"
	case ErrorFrameSizeExceeded:
		return "frame length exceeds the negotiated max frame size"
	case ErrorInvalidPriorityFrame:
		return "PRIORITY frame payload must be exactly 5 bytes"
	case ErrorInvalidRstStreamFrame:
		return "RST_STREAM frame payload must be exactly 4 bytes"
	case ErrorInvalidSettingsFrame:
		return "SETTINGS frame payload length must be a multiple of 6"
	case ErrorInvalidSettingsValue:
		return "SETTINGS parameter value out of allowed range"
	case ErrorInvalidPingFrame:
		return "PING frame payload must be exactly 8 bytes"
	case ErrorInvalidGoAwayFrame:
		return "GOAWAY frame payload shorter than 8 bytes"
	case ErrorInvalidWindowUpdateFrame:
		return "WINDOW_UPDATE frame payload must be exactly 4 bytes"
	case ErrorUnknownStream:
		return "frame references a stream id that does not exist"
	case ErrorStreamAlreadyExists:
		return "stream id already in use"
	case ErrorFlowControlViolation:
		return "flow control window underrun"
	case ErrorWindowOverflow:
		return "flow control window increment overflows 2^31-1"
	case ErrorCompressionFailure:
		return "HPACK header block decode failed"
	case ErrorPrefaceMismatch:
		return "client connection preface did not match"
	case ErrorConnectionClosed:
		return "connection already in a terminal state"
	}

	return ""
}
