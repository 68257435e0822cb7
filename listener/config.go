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

package listener

import (
	"runtime"

	liberr "github.com/nabbar/httpcore/errors"
)

// Config describes one TCP listener's bind address and worker fan-out.
type Config struct {
	Host         string `mapstructure:"host" json:"host" yaml:"host" toml:"host" validate:"required"`
	Port         uint16 `mapstructure:"port" json:"port" yaml:"port" toml:"port" validate:"required"`
	Backlog      int    `mapstructure:"backlog" json:"backlog" yaml:"backlog" toml:"backlog" validate:"gte=1"`
	NumWorkers   int    `mapstructure:"num_workers" json:"num_workers" yaml:"num_workers" toml:"num_workers" validate:"gte=0"`
	UseReusePort bool   `mapstructure:"use_reuseport" json:"use_reuseport" yaml:"use_reuseport" toml:"use_reuseport"`
}

// DefaultConfig returns a Config with the same defaults as the original
// listener: bind-all, port 8070, backlog 1024, auto worker count,
// SO_REUSEPORT enabled.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8070,
		Backlog:      1024,
		NumWorkers:   0,
		UseReusePort: true,
	}
}

// resolvedWorkers returns NumWorkers if set, otherwise
// RecommendedWorkerCount().
func (c Config) resolvedWorkers() int {
	if c.NumWorkers > 0 {
		return c.NumWorkers
	}
	return RecommendedWorkerCount()
}

// RecommendedWorkerCount mirrors the spec's Open Question resolution:
// hardware_concurrency-2, floored at 1, so the listener leaves headroom for
// the OS and any out-of-band management goroutines.
func RecommendedWorkerCount() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

func (c Config) validate() liberr.Error {
	if c.Port == 0 {
		return ErrorConfigInvalid.Error(nil)
	}
	if c.Backlog < 1 {
		return ErrorConfigInvalid.Error(nil)
	}
	return nil
}
