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

// DefaultInitialWindowSize is the flow control window every new stream (and
// the connection itself) starts with, RFC 7540 §6.9.2.
const DefaultInitialWindowSize = 65535

// StreamState is an RFC 7540 §5.1 stream state.
type StreamState uint8

const (
	StreamIdle StreamState = iota
	StreamReservedLocal
	StreamReservedRemote
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamReservedLocal:
		return "reserved(local)"
	case StreamReservedRemote:
		return "reserved(remote)"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half-closed(local)"
	case StreamHalfClosedRemote:
		return "half-closed(remote)"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is one bidirectional HTTP/2 request-response exchange.
type Stream struct {
	id    uint32
	state StreamState

	sendWindow int32
	recvWindow int32

	hasPriority bool
	priority    PrioritySpec

	requestHeaders map[string]string
	requestBody    []byte

	responseStatus  uint16
	responseHeaders map[string]string
	responseBody    []byte

	errorCode ErrorCode
}

// NewStream creates a stream in the Idle state with the given initial flow
// control window in both directions.
func NewStream(id uint32, initialWindowSize int32) *Stream {
	return &Stream{
		id:              id,
		state:           StreamIdle,
		sendWindow:      initialWindowSize,
		recvWindow:      initialWindowSize,
		requestHeaders:  make(map[string]string),
		responseStatus:  200,
		responseHeaders: make(map[string]string),
	}
}

func (s *Stream) ID() uint32             { return s.id }
func (s *Stream) State() StreamState     { return s.state }
func (s *Stream) IsClosed() bool         { return s.state == StreamClosed }
func (s *Stream) SendWindow() int32      { return s.sendWindow }
func (s *Stream) RecvWindow() int32      { return s.recvWindow }
func (s *Stream) HasPriority() bool      { return s.hasPriority }
func (s *Stream) Priority() PrioritySpec { return s.priority }
func (s *Stream) ErrorCode() ErrorCode   { return s.errorCode }

// CanSend reports whether this endpoint may still send DATA/HEADERS on s.
func (s *Stream) CanSend() bool {
	return s.state == StreamOpen || s.state == StreamHalfClosedRemote
}

// CanReceive reports whether this endpoint may still receive DATA/HEADERS
// on s.
func (s *Stream) CanReceive() bool {
	return s.state == StreamOpen || s.state == StreamHalfClosedLocal
}

func (s *Stream) SetPriority(p PrioritySpec) {
	s.priority = p
	s.hasPriority = true
}

func (s *Stream) RequestHeaders() map[string]string { return s.requestHeaders }
func (s *Stream) AddRequestHeader(name, value string) {
	s.requestHeaders[name] = value
}

func (s *Stream) RequestBody() []byte { return s.requestBody }
func (s *Stream) AppendRequestBody(data []byte) {
	s.requestBody = append(s.requestBody, data...)
}

func (s *Stream) ResponseStatus() uint16        { return s.responseStatus }
func (s *Stream) SetResponseStatus(code uint16) { s.responseStatus = code }

func (s *Stream) ResponseHeaders() map[string]string { return s.responseHeaders }
func (s *Stream) AddResponseHeader(name, value string) {
	s.responseHeaders[name] = value
}

func (s *Stream) ResponseBody() []byte { return s.responseBody }
func (s *Stream) SetResponseBody(body []byte) {
	s.responseBody = body
}

func (s *Stream) SetErrorCode(code ErrorCode) { s.errorCode = code }

// State transitions, RFC 7540 §5.1. Each records only the direction named;
// the combination of both sides' END_STREAM flags (tracked by the caller
// invoking both halves as they occur) is what actually drives Open through
// to Closed.
func (s *Stream) OnHeadersSent(endStream bool) {
	switch s.state {
	case StreamIdle:
		s.state = StreamOpen
	case StreamReservedLocal:
		s.state = StreamHalfClosedRemote
	}
	if endStream {
		s.afterLocalEndStream()
	}
}

func (s *Stream) OnHeadersReceived(endStream bool) {
	switch s.state {
	case StreamIdle:
		s.state = StreamOpen
	case StreamReservedRemote:
		s.state = StreamHalfClosedLocal
	}
	if endStream {
		s.afterRemoteEndStream()
	}
}

func (s *Stream) OnDataSent(endStream bool) {
	if endStream {
		s.afterLocalEndStream()
	}
}

func (s *Stream) OnDataReceived(endStream bool) {
	if endStream {
		s.afterRemoteEndStream()
	}
}

func (s *Stream) OnRstStream() {
	s.state = StreamClosed
}

func (s *Stream) OnPushPromiseSent() {
	if s.state == StreamIdle {
		s.state = StreamReservedLocal
	}
}

func (s *Stream) OnPushPromiseReceived() {
	if s.state == StreamIdle {
		s.state = StreamReservedRemote
	}
}

func (s *Stream) afterLocalEndStream() {
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedLocal
	case StreamHalfClosedRemote:
		s.state = StreamClosed
	}
}

func (s *Stream) afterRemoteEndStream() {
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedRemote
	case StreamHalfClosedLocal:
		s.state = StreamClosed
	}
}

// UpdateSendWindow applies a WINDOW_UPDATE increment to the send window.
func (s *Stream) UpdateSendWindow(increment int32) error {
	next := int64(s.sendWindow) + int64(increment)
	if next > (1<<31)-1 {
		return ErrorWindowOverflow.Error(nil)
	}
	s.sendWindow = int32(next)
	return nil
}

// UpdateRecvWindow applies a local increment (after a WINDOW_UPDATE we send)
// to the receive window.
func (s *Stream) UpdateRecvWindow(increment int32) error {
	next := int64(s.recvWindow) + int64(increment)
	if next > (1<<31)-1 {
		return ErrorWindowOverflow.Error(nil)
	}
	s.recvWindow = int32(next)
	return nil
}

// ConsumeSendWindow deducts size from the send window when a DATA frame is
// sent; size may legally drive the window negative only via a prior
// SETTINGS_INITIAL_WINDOW_SIZE change, never via this call.
func (s *Stream) ConsumeSendWindow(size uint32) error {
	if int64(s.sendWindow)-int64(size) < 0 {
		return ErrorFlowControlViolation.Error(nil)
	}
	s.sendWindow -= int32(size)
	return nil
}

// ConsumeRecvWindow deducts size from the receive window when a DATA frame
// is received.
func (s *Stream) ConsumeRecvWindow(size uint32) error {
	if int64(s.recvWindow)-int64(size) < 0 {
		return ErrorFlowControlViolation.Error(nil)
	}
	s.recvWindow -= int32(size)
	return nil
}

// StreamManager owns every active stream for one connection.
type StreamManager struct {
	streams           map[uint32]*Stream
	initialWindowSize int32
}

// NewStreamManager creates a manager handing new streams the given initial
// flow control window.
func NewStreamManager(initialWindowSize int32) *StreamManager {
	return &StreamManager{
		streams:           make(map[uint32]*Stream),
		initialWindowSize: initialWindowSize,
	}
}

// CreateStream allocates and registers a new stream, failing if id is
// already in use.
func (m *StreamManager) CreateStream(id uint32) (*Stream, error) {
	if _, exists := m.streams[id]; exists {
		return nil, ErrorStreamAlreadyExists.Error(nil)
	}

	s := NewStream(id, m.initialWindowSize)
	m.streams[id] = s
	return s, nil
}

// GetStream returns the stream registered under id, or nil.
func (m *StreamManager) GetStream(id uint32) *Stream {
	return m.streams[id]
}

// RemoveStream drops id from the manager once fully processed.
func (m *StreamManager) RemoveStream(id uint32) {
	delete(m.streams, id)
}

// StreamCount reports how many streams are currently tracked.
func (m *StreamManager) StreamCount() int {
	return len(m.streams)
}

// UpdateInitialWindowSize applies a SETTINGS_INITIAL_WINDOW_SIZE change: the
// delta between newSize and the manager's previous initial size is added to
// every existing stream's send window (RFC 7540 §6.9.2). This may legally
// drive a stream's window negative.
func (m *StreamManager) UpdateInitialWindowSize(newSize int32) {
	delta := int64(newSize) - int64(m.initialWindowSize)
	m.initialWindowSize = newSize

	for _, s := range m.streams {
		s.sendWindow = int32(int64(s.sendWindow) + delta)
	}
}

// InitialWindowSize reports the window size newly created streams start
// with.
func (m *StreamManager) InitialWindowSize() int32 {
	return m.initialWindowSize
}
