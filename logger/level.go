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
	"context"

	"github.com/sirupsen/logrus"
)

// Level is a logging severity, mapped directly onto logrus.Level.
type Level uint8

const (
	NilLevel Level = iota
	PanicLevel
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (l Level) logrus() logrus.Level {
	switch l {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func (l Level) String() string {
	return l.logrus().String()
}

// Log emits a log line at this level with the given fields.
func (l Level) Log(fields logrus.Fields, args ...interface{}) {
	entry := std.WithFields(fields)
	entry.Log(l.logrus(), args...)
}

// Logf emits a formatted log line at this level.
func (l Level) Logf(format string, args ...interface{}) {
	std.Logf(l.logrus(), format, args...)
}

// LogData emits a log line at this level carrying a single structured payload.
func (l Level) LogData(message string, data interface{}) {
	std.WithField("data", data).Log(l.logrus(), message)
}

// WithFields returns a logrus.Entry pre-populated with fields, for callers
// that need to chain further structured calls.
func (l Level) WithFields(fields logrus.Fields) *logrus.Entry {
	return std.WithFields(fields)
}

// LogError logs err at this level, falling back to a no-op if err is nil.
func (l Level) LogError(message string, err error) {
	if err == nil {
		return
	}
	std.WithError(err).Log(l.logrus(), message)
}

// LogErrorCtx logs err at this level with a context-derived request id field,
// if one is present on ctx.
func (l Level) LogErrorCtx(ctx context.Context, message string, err error) {
	if err == nil {
		return
	}
	std.WithContext(ctx).WithError(err).Log(l.logrus(), message)
}

// LogErrorCtxf logs a formatted message with a wrapped error, optionally
// overriding the log level used for the error itself via errLevel (NilLevel
// means "use l" for both the message and the error annotation).
func (l Level) LogErrorCtxf(errLevel Level, format string, err error, args ...interface{}) {
	lvl := l
	if errLevel != NilLevel {
		lvl = errLevel
	}

	entry := std.WithContext(context.Background())
	if err != nil {
		entry = entry.WithError(err)
	}

	entry.Logf(lvl.logrus(), format, args...)
}
