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

import (
	"encoding/binary"
)

// FrameType is one of the 10 RFC 7540 §6 frame types.
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRstStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRstStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	default:
		return "UNKNOWN"
	}
}

// Frame flag bits, by frame type (RFC 7540 §6).
const (
	FlagDataEndStream = 0x1
	FlagDataPadded    = 0x8

	FlagHeadersEndStream  = 0x1
	FlagHeadersEndHeaders = 0x4
	FlagHeadersPadded     = 0x8
	FlagHeadersPriority   = 0x20

	FlagSettingsAck = 0x1

	FlagPingAck = 0x1

	FlagPushPromiseEndHeaders = 0x4
	FlagPushPromisePadded     = 0x8

	FlagContinuationEndHeaders = 0x4
)

// ErrorCode is an RFC 7540 §7 connection/stream error code.
type ErrorCode uint32

const (
	ErrCodeNoError            ErrorCode = 0x0
	ErrCodeProtocolError      ErrorCode = 0x1
	ErrCodeInternalError      ErrorCode = 0x2
	ErrCodeFlowControlError   ErrorCode = 0x3
	ErrCodeSettingsTimeout    ErrorCode = 0x4
	ErrCodeStreamClosed       ErrorCode = 0x5
	ErrCodeFrameSizeError     ErrorCode = 0x6
	ErrCodeRefusedStream      ErrorCode = 0x7
	ErrCodeCancel             ErrorCode = 0x8
	ErrCodeCompressionError   ErrorCode = 0x9
	ErrCodeConnectError       ErrorCode = 0xa
	ErrCodeEnhanceYourCalm    ErrorCode = 0xb
	ErrCodeInadequateSecurity ErrorCode = 0xc
	ErrCodeHTTP11Required     ErrorCode = 0xd
)

// SettingsId is an RFC 7540 §6.5.2 SETTINGS parameter identifier.
type SettingsId uint16

const (
	SettingsHeaderTableSize      SettingsId = 0x1
	SettingsEnablePush           SettingsId = 0x2
	SettingsMaxConcurrentStreams SettingsId = 0x3
	SettingsInitialWindowSize    SettingsId = 0x4
	SettingsMaxFrameSize         SettingsId = 0x5
	SettingsMaxHeaderListSize    SettingsId = 0x6
)

// FrameHeaderLen is the fixed size of the frame header preceding every
// frame's payload.
const FrameHeaderLen = 9

// FrameHeader is the 9-byte header preceding every frame's payload.
type FrameHeader struct {
	Length   uint32
	Type     FrameType
	Flags    uint8
	StreamID uint32
}

// ParseFrameHeader decodes the fixed 9-byte frame header: a 24-bit length, an
// 8-bit type, an 8-bit flags field, and a 31-bit stream id with the
// reserved high bit masked off.
func ParseFrameHeader(data []byte) (FrameHeader, error) {
	if len(data) < FrameHeaderLen {
		return FrameHeader{}, ErrorFrameTooShort.Error(nil)
	}

	length := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	streamID := binary.BigEndian.Uint32(data[5:9]) &^ (1 << 31)

	return FrameHeader{
		Length:   length,
		Type:     FrameType(data[3]),
		Flags:    data[4],
		StreamID: streamID,
	}, nil
}

// WriteFrameHeader appends the 9-byte wire form of h to dst.
func WriteFrameHeader(dst []byte, h FrameHeader) []byte {
	dst = append(dst,
		byte(h.Length>>16), byte(h.Length>>8), byte(h.Length),
		byte(h.Type),
		h.Flags,
	)

	var sid [4]byte
	binary.BigEndian.PutUint32(sid[:], h.StreamID&^(1<<31))
	return append(dst, sid[:]...)
}

// PrioritySpec carries HEADERS/PRIORITY frame priority information.
type PrioritySpec struct {
	Exclusive        bool
	StreamDependency uint32
	Weight           uint8
}

// SettingsParameter is one id/value pair inside a SETTINGS frame.
type SettingsParameter struct {
	ID    SettingsId
	Value uint32
}

// ParsePriorityPayload decodes a PRIORITY frame's 5-byte payload (also used
// for the optional priority prefix of a HEADERS frame).
func ParsePriorityPayload(payload []byte) (PrioritySpec, error) {
	if len(payload) != 5 {
		return PrioritySpec{}, ErrorInvalidPriorityFrame.Error(nil)
	}

	dep := binary.BigEndian.Uint32(payload[0:4])
	return PrioritySpec{
		Exclusive:        dep&(1<<31) != 0,
		StreamDependency: dep &^ (1 << 31),
		Weight:           payload[4],
	}, nil
}

// ParseRstStreamPayload decodes a RST_STREAM frame's 4-byte payload.
func ParseRstStreamPayload(payload []byte) (ErrorCode, error) {
	if len(payload) != 4 {
		return 0, ErrorInvalidRstStreamFrame.Error(nil)
	}
	return ErrorCode(binary.BigEndian.Uint32(payload)), nil
}

// ParseSettingsPayload decodes a SETTINGS frame's payload, which must be a
// multiple of 6 bytes (one 16-bit id + 32-bit value per parameter).
func ParseSettingsPayload(payload []byte) ([]SettingsParameter, error) {
	if len(payload)%6 != 0 {
		return nil, ErrorInvalidSettingsFrame.Error(nil)
	}

	n := len(payload) / 6
	out := make([]SettingsParameter, n)
	for i := 0; i < n; i++ {
		b := payload[i*6 : i*6+6]
		out[i] = SettingsParameter{
			ID:    SettingsId(binary.BigEndian.Uint16(b[0:2])),
			Value: binary.BigEndian.Uint32(b[2:6]),
		}
	}

	return out, nil
}

// ParsePingPayload validates and returns a PING frame's 8-byte opaque data.
func ParsePingPayload(payload []byte) (uint64, error) {
	if len(payload) != 8 {
		return 0, ErrorInvalidPingFrame.Error(nil)
	}
	return binary.BigEndian.Uint64(payload), nil
}

// ParseGoAwayPayload decodes a GOAWAY frame's payload: last stream id,
// error code, and any trailing debug data.
func ParseGoAwayPayload(payload []byte) (lastStreamID uint32, code ErrorCode, debugData []byte, err error) {
	if len(payload) < 8 {
		return 0, 0, nil, ErrorInvalidGoAwayFrame.Error(nil)
	}

	lastStreamID = binary.BigEndian.Uint32(payload[0:4]) &^ (1 << 31)
	code = ErrorCode(binary.BigEndian.Uint32(payload[4:8]))
	if len(payload) > 8 {
		debugData = payload[8:]
	}

	return lastStreamID, code, debugData, nil
}

// ParseWindowUpdatePayload decodes a WINDOW_UPDATE frame's 4-byte payload.
func ParseWindowUpdatePayload(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, ErrorInvalidWindowUpdateFrame.Error(nil)
	}
	return binary.BigEndian.Uint32(payload) &^ (1 << 31), nil
}

// WriteDataFrame appends a DATA frame for data on stream streamID.
func WriteDataFrame(dst []byte, streamID uint32, data []byte, endStream bool) []byte {
	var flags uint8
	if endStream {
		flags = FlagDataEndStream
	}

	dst = WriteFrameHeader(dst, FrameHeader{Length: uint32(len(data)), Type: FrameData, Flags: flags, StreamID: streamID})
	return append(dst, data...)
}

// WriteHeadersFrame appends a HEADERS frame carrying an already
// HPACK-encoded header block. priority is only written when non-nil.
func WriteHeadersFrame(dst []byte, streamID uint32, headerBlock []byte, endStream, endHeaders bool, priority *PrioritySpec) []byte {
	var flags uint8
	if endStream {
		flags |= FlagHeadersEndStream
	}
	if endHeaders {
		flags |= FlagHeadersEndHeaders
	}

	length := len(headerBlock)
	if priority != nil {
		flags |= FlagHeadersPriority
		length += 5
	}

	dst = WriteFrameHeader(dst, FrameHeader{Length: uint32(length), Type: FrameHeaders, Flags: flags, StreamID: streamID})

	if priority != nil {
		var dep [4]byte
		binary.BigEndian.PutUint32(dep[:], priority.StreamDependency)
		if priority.Exclusive {
			dep[0] |= 0x80
		}
		dst = append(dst, dep[:]...)
		dst = append(dst, priority.Weight)
	}

	return append(dst, headerBlock...)
}

// WriteSettingsFrame appends a SETTINGS frame. Pass ack=true with an empty
// params slice to build a SETTINGS ACK.
func WriteSettingsFrame(dst []byte, params []SettingsParameter, ack bool) []byte {
	var flags uint8
	if ack {
		flags = FlagSettingsAck
	}

	dst = WriteFrameHeader(dst, FrameHeader{Length: uint32(len(params) * 6), Type: FrameSettings, Flags: flags})

	for _, p := range params {
		var b [6]byte
		binary.BigEndian.PutUint16(b[0:2], uint16(p.ID))
		binary.BigEndian.PutUint32(b[2:6], p.Value)
		dst = append(dst, b[:]...)
	}

	return dst
}

// WriteSettingsAck appends an empty SETTINGS frame with the ACK flag set.
func WriteSettingsAck(dst []byte) []byte {
	return WriteSettingsFrame(dst, nil, true)
}

// WriteWindowUpdateFrame appends a WINDOW_UPDATE frame for streamID (0 for
// the connection-level window).
func WriteWindowUpdateFrame(dst []byte, streamID, increment uint32) []byte {
	dst = WriteFrameHeader(dst, FrameHeader{Length: 4, Type: FrameWindowUpdate, StreamID: streamID})
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], increment&^(1<<31))
	return append(dst, b[:]...)
}

// WritePingFrame appends a PING frame carrying opaqueData.
func WritePingFrame(dst []byte, opaqueData uint64, ack bool) []byte {
	var flags uint8
	if ack {
		flags = FlagPingAck
	}
	dst = WriteFrameHeader(dst, FrameHeader{Length: 8, Type: FramePing, Flags: flags})
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], opaqueData)
	return append(dst, b[:]...)
}

// WriteGoAwayFrame appends a GOAWAY frame.
func WriteGoAwayFrame(dst []byte, lastStreamID uint32, code ErrorCode, debugData []byte) []byte {
	length := 8 + len(debugData)
	dst = WriteFrameHeader(dst, FrameHeader{Length: uint32(length), Type: FrameGoAway})

	var b [8]byte
	binary.BigEndian.PutUint32(b[0:4], lastStreamID&^(1<<31))
	binary.BigEndian.PutUint32(b[4:8], uint32(code))
	dst = append(dst, b[:]...)

	return append(dst, debugData...)
}

// WriteRstStreamFrame appends a RST_STREAM frame for streamID.
func WriteRstStreamFrame(dst []byte, streamID uint32, code ErrorCode) []byte {
	dst = WriteFrameHeader(dst, FrameHeader{Length: 4, Type: FrameRstStream, StreamID: streamID})
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(code))
	return append(dst, b[:]...)
}

// ConnectionPreface is the fixed 24-byte string every HTTP/2 client must
// send as the first bytes of a connection, RFC 7540 §3.5.
const ConnectionPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"
