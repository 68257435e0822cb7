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
	"sort"

	"github.com/nabbar/httpcore/atomic"
	"github.com/nabbar/httpcore/bufpool"
	"github.com/nabbar/httpcore/hpack"
	"github.com/nabbar/httpcore/logger"
)

// ConnectionSettings are the negotiable parameters of RFC 7540 §6.5.2.
type ConnectionSettings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// DefaultConnectionSettings mirrors the RFC 7540 §6.5.2 defaults.
func DefaultConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		HeaderTableSize:      4096,
		EnablePush:           true,
		MaxConcurrentStreams: 100,
		InitialWindowSize:    DefaultInitialWindowSize,
		MaxFrameSize:         16384,
		MaxHeaderListSize:    8192,
	}
}

// ConnectionState is the top-level lifecycle state of one HTTP/2 connection.
type ConnectionState uint8

const (
	ConnIdle ConnectionState = iota
	ConnPrefacePending
	ConnActive
	ConnGoAwaySent
	ConnGoAwayReceived
	ConnClosed
)

const inputPoolBufferSize = 16384

// RequestCallback is invoked once a stream's request is fully received
// (END_STREAM seen on HEADERS or DATA). The handler populates the stream's
// response fields; Connection.Flush then encodes and queues the response.
type RequestCallback func(s *Stream)

// Connection drives one HTTP/2 connection's frame-level protocol state. It
// is transport-agnostic: ProcessInput/GetOutput/CommitOutput form a
// pull-style boundary so callers (the unified server, or a test) push raw
// bytes in and drain raw bytes out without Connection touching a socket
// directly.
type Connection struct {
	isServer bool
	state    ConnectionState

	localSettings  ConnectionSettings
	remoteSettings ConnectionSettings

	settingsAckPending atomic.Value[bool]
	goAwaySent         atomic.Value[bool]
	goAwayReceived     atomic.Value[bool]

	connSendWindow int32
	connRecvWindow int32

	streams      *StreamManager
	lastStreamID uint32

	hpackEncoder *hpack.Encoder
	hpackDecoder *hpack.Decoder

	framePool *bufpool.Pool

	inputBuffer        []byte
	prefaceValidated   int
	pendingHeaderBlock []byte
	pendingStreamID    uint32
	pendingEndStream   bool
	pendingHeaders     bool

	pendingData map[uint32]*pendingResponse

	outputBuffer []byte
	outputOffset int

	onRequest RequestCallback
}

type pendingResponse struct {
	body      []byte
	offset    int
	endStream bool
}

// NewConnection creates a Connection and, for a server, queues its own
// initial SETTINGS frame immediately (RFC 7540 §3.5).
func NewConnection(isServer bool, settings ConnectionSettings, onRequest RequestCallback) *Connection {
	c := &Connection{
		isServer:           isServer,
		localSettings:      settings,
		remoteSettings:     DefaultConnectionSettings(),
		connSendWindow:      DefaultInitialWindowSize,
		connRecvWindow:      DefaultInitialWindowSize,
		streams:            NewStreamManager(int32(settings.InitialWindowSize)),
		hpackEncoder:       hpack.NewEncoder(),
		hpackDecoder:       hpack.NewDecoder(),
		framePool:          bufpool.New(inputPoolBufferSize),
		pendingData:        make(map[uint32]*pendingResponse),
		settingsAckPending: atomic.NewValue[bool](),
		goAwaySent:         atomic.NewValue[bool](),
		goAwayReceived:     atomic.NewValue[bool](),
		onRequest:          onRequest,
	}

	c.hpackDecoder.SetMaxTableSize(int(settings.HeaderTableSize))

	if isServer {
		c.state = ConnPrefacePending
	} else {
		c.state = ConnActive
	}

	if err := c.sendSettings(); err != nil {
		logger.ErrorLevel.LogError("failed to queue initial settings frame", err)
	}

	return c
}

func (c *Connection) State() ConnectionState            { return c.state }
func (c *Connection) IsActive() bool                     { return c.state == ConnActive }
func (c *Connection) LocalSettings() ConnectionSettings  { return c.localSettings }
func (c *Connection) RemoteSettings() ConnectionSettings { return c.remoteSettings }
func (c *Connection) ConnectionSendWindow() int32        { return c.connSendWindow }
func (c *Connection) ConnectionRecvWindow() int32        { return c.connRecvWindow }
func (c *Connection) GetStream(id uint32) *Stream        { return c.streams.GetStream(id) }

// ProcessInput feeds newly-received bytes to the connection and drives the
// preface/frame state machine as far forward as the buffered data allows,
// returning the number of bytes it has fully consumed.
func (c *Connection) ProcessInput(data []byte) (int, error) {
	if c.state == ConnClosed {
		return 0, ErrorConnectionClosed.Error(nil)
	}

	c.inputBuffer = append(c.inputBuffer, data...)
	consumed := 0

	if c.state == ConnPrefacePending {
		n, done, err := c.feedPreface(c.inputBuffer)
		consumed += n
		c.inputBuffer = c.inputBuffer[n:]
		if err != nil {
			return consumed, err
		}
		if !done {
			return consumed, nil
		}
		c.state = ConnActive
	}

	for {
		n, err := c.processOneFrame(c.inputBuffer)
		if err != nil {
			return consumed, err
		}
		if n == 0 {
			break
		}
		consumed += n
		c.inputBuffer = c.inputBuffer[n:]
	}

	return consumed, nil
}

// feedPreface incrementally matches the 24-byte client preface across
// however many bytes are currently available, so a preface split across
// two reads is never falsely rejected.
func (c *Connection) feedPreface(data []byte) (consumed int, done bool, err error) {
	remaining := len(ConnectionPreface) - c.prefaceValidated
	n := len(data)
	if n > remaining {
		n = remaining
	}

	want := ConnectionPreface[c.prefaceValidated : c.prefaceValidated+n]
	if string(data[:n]) != want {
		return 0, false, ErrorPrefaceMismatch.Error(nil)
	}

	c.prefaceValidated += n
	return n, c.prefaceValidated == len(ConnectionPreface), nil
}

func (c *Connection) processOneFrame(data []byte) (int, error) {
	if len(data) < FrameHeaderLen {
		return 0, nil
	}

	h, err := ParseFrameHeader(data)
	if err != nil {
		return 0, err
	}

	if h.Length > c.localSettings.MaxFrameSize {
		_ = c.SendGoAway(ErrCodeFrameSizeError, nil)
		return 0, ErrorFrameSizeExceeded.Error(nil)
	}

	total := FrameHeaderLen + int(h.Length)
	if len(data) < total {
		return 0, nil
	}

	payload := data[FrameHeaderLen:total]

	switch h.Type {
	case FrameData:
		err = c.handleDataFrame(h, payload)
	case FrameHeaders:
		err = c.handleHeadersFrame(h, payload)
	case FramePriority:
		err = c.handlePriorityFrame(h, payload)
	case FrameRstStream:
		err = c.handleRstStreamFrame(h, payload)
	case FrameSettings:
		err = c.handleSettingsFrame(h, payload)
	case FramePushPromise:
		err = c.handlePushPromiseFrame(h, payload)
	case FramePing:
		err = c.handlePingFrame(h, payload)
	case FrameGoAway:
		err = c.handleGoAwayFrame(payload)
	case FrameWindowUpdate:
		err = c.handleWindowUpdateFrame(h, payload)
	case FrameContinuation:
		err = c.handleContinuationFrame(h, payload)
	}

	if err != nil {
		return total, err
	}

	return total, nil
}

func stripPadding(flags uint8, paddedFlag uint8, payload []byte) ([]byte, error) {
	if flags&paddedFlag == 0 {
		return payload, nil
	}
	if len(payload) == 0 {
		return nil, ErrorFrameTooShort.Error(nil)
	}
	padLen := int(payload[0])
	payload = payload[1:]
	if padLen > len(payload) {
		return nil, ErrorFrameTooShort.Error(nil)
	}
	return payload[:len(payload)-padLen], nil
}

func (c *Connection) handleDataFrame(h FrameHeader, payload []byte) error {
	body, err := stripPadding(h.Flags, FlagDataPadded, payload)
	if err != nil {
		return err
	}

	if err = c.consumeConnRecvWindow(uint32(len(body))); err != nil {
		return err
	}

	s := c.streams.GetStream(h.StreamID)
	if s == nil {
		return ErrorUnknownStream.Error(nil)
	}
	if err = s.ConsumeRecvWindow(uint32(len(body))); err != nil {
		return err
	}

	if len(body) > 0 {
		scratch := c.framePool.Get()
		n := copy(scratch, body)
		s.AppendRequestBody(scratch[:n])
		if n < len(body) {
			s.AppendRequestBody(body[n:])
		}
		c.framePool.Put(scratch)
	}

	endStream := h.Flags&FlagDataEndStream != 0
	s.OnDataReceived(endStream)
	if endStream && c.onRequest != nil {
		c.onRequest(s)
	}

	return nil
}

func (c *Connection) handleHeadersFrame(h FrameHeader, payload []byte) error {
	body, err := stripPadding(h.Flags, FlagHeadersPadded, payload)
	if err != nil {
		return err
	}

	if h.Flags&FlagHeadersPriority != 0 {
		if len(body) < 5 {
			return ErrorInvalidPriorityFrame.Error(nil)
		}
		p, pErr := ParsePriorityPayload(body[:5])
		if pErr != nil {
			return pErr
		}
		body = body[5:]

		s := c.ensureStream(h.StreamID)
		s.SetPriority(p)
	}

	s := c.ensureStream(h.StreamID)
	endStream := h.Flags&FlagHeadersEndStream != 0
	s.OnHeadersReceived(endStream)

	if h.StreamID > c.lastStreamID {
		c.lastStreamID = h.StreamID
	}

	c.pendingHeaderBlock = append(c.pendingHeaderBlock[:0], body...)
	c.pendingStreamID = h.StreamID
	c.pendingEndStream = endStream
	c.pendingHeaders = true

	if h.Flags&FlagHeadersEndHeaders != 0 {
		return c.finishHeaderBlock()
	}

	return nil
}

func (c *Connection) handleContinuationFrame(h FrameHeader, payload []byte) error {
	if !c.pendingHeaders || h.StreamID != c.pendingStreamID {
		return ErrorCompressionFailure.Error(nil)
	}

	c.pendingHeaderBlock = append(c.pendingHeaderBlock, payload...)

	if h.Flags&FlagContinuationEndHeaders != 0 {
		return c.finishHeaderBlock()
	}

	return nil
}

func (c *Connection) finishHeaderBlock() error {
	c.pendingHeaders = false

	headers, err := c.hpackDecoder.Decode(c.pendingHeaderBlock)
	if err != nil {
		return ErrorCompressionFailure.Error(nil)
	}

	s := c.streams.GetStream(c.pendingStreamID)
	if s == nil {
		return ErrorUnknownStream.Error(nil)
	}
	for _, hd := range headers {
		s.AddRequestHeader(hd.Name, hd.Value)
	}

	if c.pendingEndStream && c.onRequest != nil {
		c.onRequest(s)
	}

	return nil
}

func (c *Connection) ensureStream(id uint32) *Stream {
	if s := c.streams.GetStream(id); s != nil {
		return s
	}
	s, _ := c.streams.CreateStream(id)
	return s
}

func (c *Connection) handlePriorityFrame(h FrameHeader, payload []byte) error {
	p, err := ParsePriorityPayload(payload)
	if err != nil {
		return err
	}
	c.ensureStream(h.StreamID).SetPriority(p)
	return nil
}

func (c *Connection) handleRstStreamFrame(h FrameHeader, payload []byte) error {
	code, err := ParseRstStreamPayload(payload)
	if err != nil {
		return err
	}

	s := c.streams.GetStream(h.StreamID)
	if s == nil {
		return ErrorUnknownStream.Error(nil)
	}
	s.SetErrorCode(code)
	s.OnRstStream()

	return nil
}

func (c *Connection) handleSettingsFrame(h FrameHeader, payload []byte) error {
	if h.Flags&FlagSettingsAck != 0 {
		c.settingsAckPending.Store(false)
		return nil
	}

	params, err := ParseSettingsPayload(payload)
	if err != nil {
		return err
	}

	if err = c.applySettings(params); err != nil {
		return err
	}

	return c.sendSettingsAck()
}

func (c *Connection) applySettings(params []SettingsParameter) error {
	for _, p := range params {
		switch p.ID {
		case SettingsHeaderTableSize:
			c.remoteSettings.HeaderTableSize = p.Value
			c.hpackEncoder.SetMaxTableSize(int(p.Value))
		case SettingsEnablePush:
			c.remoteSettings.EnablePush = p.Value != 0
		case SettingsMaxConcurrentStreams:
			c.remoteSettings.MaxConcurrentStreams = p.Value
		case SettingsInitialWindowSize:
			if p.Value > (1<<31)-1 {
				return ErrorInvalidSettingsValue.Error(nil)
			}
			c.remoteSettings.InitialWindowSize = p.Value
			c.streams.UpdateInitialWindowSize(int32(p.Value))
		case SettingsMaxFrameSize:
			if p.Value < 16384 || p.Value > 16777215 {
				return ErrorInvalidSettingsValue.Error(nil)
			}
			c.remoteSettings.MaxFrameSize = p.Value
		case SettingsMaxHeaderListSize:
			c.remoteSettings.MaxHeaderListSize = p.Value
		}
	}

	return nil
}

func (c *Connection) handlePushPromiseFrame(h FrameHeader, payload []byte) error {
	body, err := stripPadding(h.Flags, FlagPushPromisePadded, payload)
	if err != nil {
		return err
	}
	if len(body) < 4 {
		return ErrorFrameTooShort.Error(nil)
	}

	promisedID := (uint32(body[0])<<24 | uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3])) &^ (1 << 31)
	s, cErr := c.streams.CreateStream(promisedID)
	if cErr != nil {
		return cErr
	}
	s.OnPushPromiseReceived()

	return nil
}

func (c *Connection) handlePingFrame(h FrameHeader, payload []byte) error {
	opaque, err := ParsePingPayload(payload)
	if err != nil {
		return err
	}

	if h.Flags&FlagPingAck != 0 {
		return nil
	}

	c.outputBuffer = WritePingFrame(c.outputBuffer, opaque, true)
	return nil
}

func (c *Connection) handleGoAwayFrame(payload []byte) error {
	lastID, code, debug, err := ParseGoAwayPayload(payload)
	if err != nil {
		return err
	}

	c.goAwayReceived.Store(true)
	c.state = ConnGoAwayReceived
	logger.InfoLevel.Logf("http2: GOAWAY received last_stream_id=%d code=%d debug=%q", lastID, code, debug)

	return nil
}

func (c *Connection) handleWindowUpdateFrame(h FrameHeader, payload []byte) error {
	increment, err := ParseWindowUpdatePayload(payload)
	if err != nil {
		return err
	}
	if increment == 0 {
		return ErrorInvalidWindowUpdateFrame.Error(nil)
	}

	if h.StreamID == 0 {
		next := int64(c.connSendWindow) + int64(increment)
		if next > (1<<31)-1 {
			return ErrorWindowOverflow.Error(nil)
		}
		c.connSendWindow = int32(next)
		c.flushAllPending()
		return nil
	}

	s := c.streams.GetStream(h.StreamID)
	if s == nil {
		return ErrorUnknownStream.Error(nil)
	}
	if err = s.UpdateSendWindow(int32(increment)); err != nil {
		return err
	}

	c.flushPending(h.StreamID)
	return nil
}

func (c *Connection) consumeConnRecvWindow(size uint32) error {
	if int64(c.connRecvWindow)-int64(size) < 0 {
		return ErrorFlowControlViolation.Error(nil)
	}
	c.connRecvWindow -= int32(size)
	return nil
}

// SendResponse encodes status/headers via HPACK and queues a HEADERS frame
// (plus DATA frames for a non-empty body, chunked to MaxFrameSize and
// subject to both the stream and connection send windows).
func (c *Connection) SendResponse(streamID uint32, status int, headers map[string]string, body []byte) error {
	s := c.streams.GetStream(streamID)
	if s == nil {
		return ErrorUnknownStream.Error(nil)
	}

	s.SetResponseStatus(uint16(status))

	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
		s.AddResponseHeader(k, headers[k])
	}
	sort.Strings(names)

	hdrs := make([]hpack.Header, 0, len(names)+1)
	hdrs = append(hdrs, hpack.Header{Name: ":status", Value: statusValue(status)})
	for _, n := range names {
		hdrs = append(hdrs, hpack.Header{Name: n, Value: headers[n]})
	}

	block := c.hpackEncoder.Encode(nil, hdrs)

	endStream := len(body) == 0
	c.outputBuffer = WriteHeadersFrame(c.outputBuffer, streamID, block, endStream, true, nil)
	s.OnHeadersSent(endStream)

	if !endStream {
		c.pendingData[streamID] = &pendingResponse{body: body, endStream: true}
		c.flushPending(streamID)
	}

	return nil
}

func (c *Connection) flushAllPending() {
	for id := range c.pendingData {
		c.flushPending(id)
	}
}

func (c *Connection) flushPending(streamID uint32) {
	pr, ok := c.pendingData[streamID]
	if !ok {
		return
	}
	s := c.streams.GetStream(streamID)
	if s == nil {
		delete(c.pendingData, streamID)
		return
	}

	maxFrame := int(c.remoteSettings.MaxFrameSize)

	for pr.offset < len(pr.body) {
		remaining := len(pr.body) - pr.offset
		chunk := remaining
		if chunk > maxFrame {
			chunk = maxFrame
		}
		if int32(chunk) > s.SendWindow() {
			chunk = int(s.SendWindow())
		}
		if int32(chunk) > c.connSendWindow {
			chunk = int(c.connSendWindow)
		}
		if chunk <= 0 {
			return
		}

		last := pr.offset+chunk == len(pr.body)
		data := pr.body[pr.offset : pr.offset+chunk]

		c.outputBuffer = WriteDataFrame(c.outputBuffer, streamID, data, last)
		_ = s.ConsumeSendWindow(uint32(chunk))
		c.connSendWindow -= int32(chunk)
		pr.offset += chunk

		if last {
			s.OnDataSent(true)
			delete(c.pendingData, streamID)
			return
		}
	}
}

func statusValue(status int) string {
	const digits = "0123456789"
	if status < 0 {
		status = 0
	}
	b := [3]byte{digits[0], digits[0], digits[0]}
	for i := 2; i >= 0 && status > 0; i-- {
		b[i] = digits[status%10]
		status /= 10
	}
	return string(b[:])
}

// SendRstStream queues a RST_STREAM frame and transitions the stream to
// Closed.
func (c *Connection) SendRstStream(streamID uint32, code ErrorCode) error {
	s := c.streams.GetStream(streamID)
	if s == nil {
		return ErrorUnknownStream.Error(nil)
	}

	c.outputBuffer = WriteRstStreamFrame(c.outputBuffer, streamID, code)
	s.SetErrorCode(code)
	s.OnRstStream()

	return nil
}

// SendGoAway queues a GOAWAY frame recording the highest stream id this
// endpoint has fully processed and transitions to GoawaySent.
func (c *Connection) SendGoAway(code ErrorCode, debugData []byte) error {
	c.outputBuffer = WriteGoAwayFrame(c.outputBuffer, c.lastStreamID, code, debugData)
	c.goAwaySent.Store(true)
	c.state = ConnGoAwaySent
	logger.InfoLevel.Logf("http2: GOAWAY sent last_stream_id=%d code=%d", c.lastStreamID, code)

	return nil
}

func (c *Connection) sendSettings() error {
	params := []SettingsParameter{
		{ID: SettingsHeaderTableSize, Value: c.localSettings.HeaderTableSize},
		{ID: SettingsMaxConcurrentStreams, Value: c.localSettings.MaxConcurrentStreams},
		{ID: SettingsInitialWindowSize, Value: c.localSettings.InitialWindowSize},
		{ID: SettingsMaxFrameSize, Value: c.localSettings.MaxFrameSize},
		{ID: SettingsMaxHeaderListSize, Value: c.localSettings.MaxHeaderListSize},
	}
	if !c.localSettings.EnablePush {
		params = append(params, SettingsParameter{ID: SettingsEnablePush, Value: 0})
	}

	c.outputBuffer = WriteSettingsFrame(c.outputBuffer, params, false)
	c.settingsAckPending.Store(true)

	return nil
}

func (c *Connection) sendSettingsAck() error {
	c.outputBuffer = WriteSettingsAck(c.outputBuffer)
	return nil
}

// GetOutput returns the bytes queued for the network since the last
// CommitOutput. The returned slice is valid until the next ProcessInput,
// SendResponse, SendRstStream, or SendGoAway call.
func (c *Connection) GetOutput() []byte {
	return c.outputBuffer[c.outputOffset:]
}

// CommitOutput marks n bytes of the pending output as sent, compacting the
// buffer once fully drained.
func (c *Connection) CommitOutput(n int) {
	c.outputOffset += n
	if c.outputOffset >= len(c.outputBuffer) {
		c.outputBuffer = c.outputBuffer[:0]
		c.outputOffset = 0
	}
}

// Close transitions the connection to Closed; no further frames will be
// processed or queued.
func (c *Connection) Close() {
	c.state = ConnClosed
}
