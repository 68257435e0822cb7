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

// Command httpcored is a minimal demonstration of the unified server: it
// serves /health, /users/{id} and /static/*path over cleartext HTTP/1.1
// and, when a certificate pair is supplied, ALPN-negotiated HTTP/2 or
// HTTP/1.1 over TLS on the same process.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	libtls "github.com/nabbar/httpcore/certificates"
	tlscrt "github.com/nabbar/httpcore/certificates/certs"
	"github.com/nabbar/httpcore/logger"
	"github.com/nabbar/httpcore/router"
	"github.com/nabbar/httpcore/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.FatalLevel.LogError("httpcored exited", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		listenAddr string
		tlsCert    string
		tlsKey     string
		http1Port  uint16
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "httpcored",
		Short: "Run the unified multi-protocol HTTP server demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(listenAddr, tlsCert, tlsKey, http1Port, workers)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&listenAddr, "listen", "0.0.0.0:8443", "host:port the TLS listener binds, used only when --tls-cert and --tls-key are both set")
	flags.StringVar(&tlsCert, "tls-cert", "", "path to a PEM certificate to terminate TLS with")
	flags.StringVar(&tlsKey, "tls-key", "", "path to the PEM private key matching --tls-cert")
	flags.Uint16Var(&http1Port, "http1-port", 8080, "port for the cleartext HTTP/1.1 listener, 0 to disable it")
	flags.IntVar(&workers, "workers", 0, "reactor worker count, 0 selects listener.RecommendedWorkerCount()")

	return cmd
}

func run(listenAddr, tlsCert, tlsKey string, http1Port uint16, workers int) error {
	cfg := server.DefaultConfig()
	cfg.NumWorkers = workers
	cfg.EnableHTTP1Cleartext = http1Port > 0
	cfg.HTTP1Port = http1Port
	cfg.Handler = buildHandler()

	host, tlsPort, hasTLSAddr, err := splitListenAddr(listenAddr)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Host = host
	}

	if tlsCert != "" && tlsKey != "" {
		if !hasTLSAddr {
			return fmt.Errorf("--listen must be host:port when --tls-cert and --tls-key are set")
		}

		certif, cErr := certificatePairFromFiles(tlsKey, tlsCert)
		if cErr != nil {
			return cErr
		}

		cfg.EnableTLS = true
		cfg.TLSPort = tlsPort
		cfg.TLS = libtls.Config{Certs: []tlscrt.Certif{certif}}
	}

	srv, sErr := server.New(cfg)
	if sErr != nil {
		return sErr
	}

	if sErr = srv.Start(); sErr != nil {
		return sErr
	}

	logger.InfoLevel.Log(logrus.Fields{
		"host":       cfg.Host,
		"tls":        cfg.EnableTLS,
		"tls_port":   cfg.TLSPort,
		"http1_port": cfg.HTTP1Port,
	}, "httpcored started")

	waitForShutdown()

	logger.InfoLevel.Log(nil, "httpcored stopping")
	return srv.Stop()
}

// certificatePairFromFiles builds a tlscrt.Certif from a key/cert file pair
// via its JSON codec rather than certificates.TLSConfig.AddCertificatePairFile:
// the latter only mutates a throwaway TLSConfig returned by Config.New(),
// which Config.Validate and every listener's own New() call never see.
// Certif's unexported fields can only be populated through its own
// (Un)marshal methods, so this round-trips through the same ConfigPair
// shape (key/pub, file path or raw PEM, auto-detected) that its
// UnmarshalJSON already accepts.
func certificatePairFromFiles(keyFile, certFile string) (tlscrt.Certif, error) {
	var certif tlscrt.Certif

	payload, err := json.Marshal(struct {
		Key string `json:"key"`
		Pub string `json:"pub"`
	}{Key: keyFile, Pub: certFile})
	if err != nil {
		return certif, err
	}

	if err = certif.UnmarshalJSON(payload); err != nil {
		return certif, fmt.Errorf("loading certificate pair: %w", err)
	}

	return certif, nil
}

func splitListenAddr(addr string) (host string, port uint16, ok bool, err error) {
	idx := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return addr, 0, false, nil
	}

	p, pErr := strconv.ParseUint(addr[idx+1:], 10, 16)
	if pErr != nil {
		return "", 0, false, fmt.Errorf("invalid --listen %q: %w", addr, pErr)
	}

	return addr[:idx], uint16(p), true, nil
}

func buildHandler() server.Handler {
	table := server.NewRouteTable()

	table.Add("GET", "/health", func(req *server.Request, _ *router.Params, respond server.ResponseFunc) {
		respond(200, server.Header{{Name: "Content-Type", Value: "text/plain"}}, []byte("ok"))
	})

	table.Add("GET", "/users/{id}", func(req *server.Request, params *router.Params, respond server.ResponseFunc) {
		id, _ := params.Get("id")
		respond(200, server.Header{{Name: "Content-Type", Value: "application/json"}}, []byte(fmt.Sprintf(`{"id":%q}`, id)))
	})

	table.Add("GET", "/static/*path", func(req *server.Request, params *router.Params, respond server.ResponseFunc) {
		path, _ := params.Get("path")
		respond(200, server.Header{{Name: "Content-Type", Value: "text/plain"}}, []byte(path))
	})

	disp, err := server.NewDispatcher(table)
	if err != nil {
		logger.FatalLevel.LogError("route table rejected", err)
		os.Exit(1)
	}

	return disp.AsHandler(nil)
}

func waitForShutdown() {
	ctx, cnl := context.WithCancel(context.Background())
	defer cnl()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case <-quit:
		cnl()
	case <-ctx.Done():
	}
}
