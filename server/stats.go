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

package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a prometheus.Collector tracking accept/close/request/stream
// events across every worker. It is purely passive: the core never starts
// an HTTP endpoint to expose it (per spec.md §1's scope), it only
// implements prometheus.Collector so a caller's own metrics endpoint can
// register it. Counters are plain prometheus primitives rather than
// hand-rolled atomics, since they already aggregate per-label without
// cross-core contention the way spec.md §9's "lift into an explicit,
// injected context ... atomic cells aggregated per-worker" note asks for.
type Stats struct {
	connectionsAccepted *prometheus.CounterVec
	connectionsClosed   *prometheus.CounterVec
	requestsTotal       *prometheus.CounterVec
	streamsActive       *prometheus.GaugeVec
	bytesIn             prometheus.Counter
	bytesOut            prometheus.Counter
}

// NewStats builds a Stats collector. namespace/subsystem follow
// prometheus's usual naming convention and may be empty.
func NewStats(namespace, subsystem string) *Stats {
	return &Stats{
		connectionsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_accepted_total",
			Help:      "Total connections accepted, labeled by listener protocol.",
		}, []string{"protocol"}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_closed_total",
			Help:      "Total connections closed, labeled by listener protocol.",
		}, []string{"protocol"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total requests dispatched, labeled by protocol and status class.",
		}, []string{"protocol", "status_class"}),
		streamsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http2_streams_active",
			Help:      "Currently open HTTP/2 streams.",
		}, []string{}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_received_total",
			Help:      "Total bytes read off accepted sockets.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to accepted sockets.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (s *Stats) Describe(ch chan<- *prometheus.Desc) {
	s.connectionsAccepted.Describe(ch)
	s.connectionsClosed.Describe(ch)
	s.requestsTotal.Describe(ch)
	s.streamsActive.Describe(ch)
	s.bytesIn.Describe(ch)
	s.bytesOut.Describe(ch)
}

// Collect implements prometheus.Collector.
func (s *Stats) Collect(ch chan<- prometheus.Metric) {
	s.connectionsAccepted.Collect(ch)
	s.connectionsClosed.Collect(ch)
	s.requestsTotal.Collect(ch)
	s.streamsActive.Collect(ch)
	s.bytesIn.Collect(ch)
	s.bytesOut.Collect(ch)
}

func (s *Stats) onAccept(protocol string) {
	if s == nil {
		return
	}
	s.connectionsAccepted.WithLabelValues(protocol).Inc()
}

func (s *Stats) onClose(protocol string) {
	if s == nil {
		return
	}
	s.connectionsClosed.WithLabelValues(protocol).Inc()
}

func (s *Stats) onRequest(protocol string, status int) {
	if s == nil {
		return
	}
	s.requestsTotal.WithLabelValues(protocol, statusClass(status)).Inc()
}

func (s *Stats) onStreamOpen() {
	if s == nil {
		return
	}
	s.streamsActive.WithLabelValues().Inc()
}

func (s *Stats) onStreamClose() {
	if s == nil {
		return
	}
	s.streamsActive.WithLabelValues().Dec()
}

func (s *Stats) addBytesIn(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.bytesIn.Add(float64(n))
}

func (s *Stats) addBytesOut(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.bytesOut.Add(float64(n))
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
