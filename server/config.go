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
	"fmt"

	"github.com/go-playground/validator/v10"

	libtls "github.com/nabbar/httpcore/certificates"
	liberr "github.com/nabbar/httpcore/errors"
	"github.com/nabbar/httpcore/listener"
)

// Config describes a unified server instance: up to three listeners (a
// mandatory-if-enabled TLS TCP listener, an optional cleartext HTTP/1.1
// TCP listener, and an optional UDP listener reserved for a future
// HTTP/3 driver) sharing one process-wide Handler, per spec.md §4.9/§6.
type Config struct {
	// Host is the bind address shared by every listener this Config
	// enables.
	Host string `mapstructure:"host" json:"host" yaml:"host" toml:"host" validate:"required"`

	// EnableTLS turns on the TLS TCP listener on TLSPort. When true, TLS
	// must describe at least one certificate pair.
	EnableTLS bool `mapstructure:"enable_tls" json:"enable_tls" yaml:"enable_tls" toml:"enable_tls"`

	// TLSPort is the TLS listener's port, required when EnableTLS is set.
	TLSPort uint16 `mapstructure:"tls_port" json:"tls_port" yaml:"tls_port" toml:"tls_port"`

	// TLS configures certificates, cipher/curve/version selection and
	// client-auth mode, mirroring httpserver.ServerConfig.TLS.
	TLS libtls.Config `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`

	// ALPNProtocols is the ALPN negotiation order offered by the TLS
	// listener. Defaults to tlssocket.DefaultALPNProtocols
	// (["h2", "http/1.1"]) when empty.
	ALPNProtocols []string `mapstructure:"alpn_protocols" json:"alpn_protocols" yaml:"alpn_protocols" toml:"alpn_protocols"`

	// EnableHTTP1Cleartext turns on a second, non-TLS TCP listener that
	// only ever speaks HTTP/1.1, on HTTP1Port.
	EnableHTTP1Cleartext bool `mapstructure:"enable_http1_cleartext" json:"enable_http1_cleartext" yaml:"enable_http1_cleartext" toml:"enable_http1_cleartext"`

	// HTTP1Port is the cleartext listener's port, required when
	// EnableHTTP1Cleartext is set.
	HTTP1Port uint16 `mapstructure:"http1_port" json:"http1_port" yaml:"http1_port" toml:"http1_port"`

	// EnableHTTP3 reserves a UDP listener on HTTP3Port. No HTTP/3 driver
	// is implemented; the listener is started and datagrams are
	// discarded, matching spec.md's explicit HTTP/3 Non-goal while still
	// exercising listener.UDPListener end to end.
	EnableHTTP3 bool `mapstructure:"enable_http3" json:"enable_http3" yaml:"enable_http3" toml:"enable_http3"`

	// HTTP3Port is the reserved UDP listener's port, required when
	// EnableHTTP3 is set.
	HTTP3Port uint16 `mapstructure:"http3_port" json:"http3_port" yaml:"http3_port" toml:"http3_port"`

	// NumWorkers is the worker count for every listener this Config
	// enables; 0 means listener.RecommendedWorkerCount().
	NumWorkers int `mapstructure:"num_workers" json:"num_workers" yaml:"num_workers" toml:"num_workers" validate:"gte=0"`

	// UseReusePort selects SO_REUSEPORT-per-worker acceptors over the
	// single-acceptor fan-out mode for every TCP listener.
	UseReusePort bool `mapstructure:"use_reuseport" json:"use_reuseport" yaml:"use_reuseport" toml:"use_reuseport"`

	// Backlog is the TCP listen backlog shared by the TLS and cleartext
	// listeners.
	Backlog int `mapstructure:"backlog" json:"backlog" yaml:"backlog" toml:"backlog" validate:"gte=0"`

	// Handler is the single process-wide request handler every accepted
	// connection, on either listener and either HTTP version, dispatches
	// into.
	Handler Handler `mapstructure:"-" json:"-" yaml:"-" toml:"-" validate:"required"`

	// Stats is an optional prometheus-backed collector updated on
	// accept/close/request/stream events. Nil by default: the core does
	// not require Prometheus to run.
	Stats *Stats `mapstructure:"-" json:"-" yaml:"-" toml:"-"`
}

// DefaultConfig returns a Config with conservative defaults: cleartext
// HTTP/1.1 only, on the host/port pair listener.DefaultConfig() would
// pick, auto worker count, SO_REUSEPORT enabled.
func DefaultConfig() Config {
	d := listener.DefaultConfig()
	return Config{
		Host:                 d.Host,
		EnableHTTP1Cleartext: true,
		HTTP1Port:            d.Port,
		NumWorkers:           d.NumWorkers,
		UseReusePort:         d.UseReusePort,
		Backlog:              d.Backlog,
	}
}

// Validate checks the struct tags via go-playground/validator and the
// cross-field rules validator tags cannot express (ports required only
// when their listener is enabled, at least one listener enabled, a
// certificate pair present when TLS is on).
func (c Config) Validate() liberr.Error {
	val := validator.New()
	err := val.Struct(c)

	out := ErrorConfigInvalid.Error(nil)

	if e, ok := err.(*validator.InvalidValidationError); ok {
		out.Add(e)
	} else if err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			//nolint goerr113
			out.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.Field(), e.ActualTag()))
		}
	}

	if c.Handler == nil {
		out.Add(ErrorConfigMissingHandler.Error(nil))
	}

	if !c.EnableTLS && !c.EnableHTTP1Cleartext && !c.EnableHTTP3 {
		out.Add(ErrorNoListenerEnabled.Error(nil))
	}

	if c.EnableTLS {
		if c.TLSPort == 0 {
			out.Add(fmt.Errorf("tls_port is required when enable_tls is set"))
		}
		if tc := c.TLS.New(); tc == nil || tc.LenCertificatePair() == 0 {
			out.Add(fmt.Errorf("tls.certs must describe at least one certificate pair when enable_tls is set"))
		}
	}

	if c.EnableHTTP1Cleartext && c.HTTP1Port == 0 {
		out.Add(fmt.Errorf("http1_port is required when enable_http1_cleartext is set"))
	}

	if c.EnableHTTP3 && c.HTTP3Port == 0 {
		out.Add(fmt.Errorf("http3_port is required when enable_http3 is set"))
	}

	if out.HasParent() {
		return out
	}

	return nil
}

func (c Config) listenerConfig(port uint16) listener.Config {
	return listener.Config{
		Host:         c.Host,
		Port:         port,
		Backlog:      c.backlog(),
		NumWorkers:   c.NumWorkers,
		UseReusePort: c.UseReusePort,
	}
}

func (c Config) backlog() int {
	if c.Backlog > 0 {
		return c.Backlog
	}
	return 1024
}
