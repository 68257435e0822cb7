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

package logger

import (
	"fmt"
	"log"

	"github.com/sirupsen/logrus"
)

// std is the package-wide logrus instance. Callers that need a differently
// configured logger (custom output, hooks) should use SetOutput/SetFormatter
// rather than constructing their own logrus.Logger, so that every package
// in this module shares one log stream.
var std = logrus.New()

// FuncLog is the signature used by packages that accept an optional,
// injectable logger factory (mirrors ServerConfig's logging hook).
type FuncLog func() *logrus.Logger

// SetOutput redirects every subsequent log line to w.
func SetOutput(w interface{ Write([]byte) (int, error) }) {
	std.SetOutput(w)
}

// SetLevel bounds which severities are actually emitted.
func SetLevel(l Level) {
	std.SetLevel(l.logrus())
}

// GetLogger adapts the package logger to the standard library's *log.Logger,
// for interop with APIs that only accept one (net/http.Server.ErrorLog).
// flags are the usual log.Ldate/log.Ltime/... bit flags; they are accepted
// for API compatibility but are not applied, since every line already goes
// through the structured logrus pipeline.
func GetLogger(level Level, flags int, pattern string, args ...interface{}) *log.Logger {
	prefix := pattern
	if len(args) > 0 {
		prefix = fmt.Sprintf(pattern, args...)
	}

	return log.New(&levelWriter{level: level}, prefix+" ", 0)
}

// levelWriter adapts io.Writer onto a single logrus level, so the standard
// library logger writes end up as structured entries instead of bypassing
// logrus altogether.
type levelWriter struct {
	level Level
}

func (w *levelWriter) Write(p []byte) (int, error) {
	msg := string(p)
	std.Log(w.level.logrus(), msg)
	return len(p), nil
}
