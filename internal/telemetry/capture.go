// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// DefaultTrailer is the marker the receiving radio prints after every
// frame it passes on, followed by the signal strength.
const DefaultTrailer = "\nRSSI:"

// maxCaptureBuffer bounds the bytes kept while no trailer shows up.
const maxCaptureBuffer = 4096

// ErrNoWindow is returned by Capture.Next when the source ran dry before a
// trailer arrived. The partial data is kept for the next call.
var ErrNoWindow = errors.New("telemetry: no complete window yet")

// ExtractWindow returns the payload window that ends at the first trailer
// in buf: at most PayloadLength bytes immediately preceding it, trimmed of
// surrounding whitespace. ok is false if buf holds no trailer.
func ExtractWindow(buf []byte, trailer string) (window string, rest []byte, ok bool) {
	i := bytes.Index(buf, []byte(trailer))
	if i < 0 {
		return "", buf, false
	}
	start := i - PayloadLength
	if start < 0 {
		start = 0
	}
	return strings.TrimSpace(string(buf[start:i])), buf[i+len(trailer):], true
}

// Capture reads a receive stream and yields one window per trailer.
// Reads that time out (zero bytes or io.EOF) are not errors.
type Capture struct {
	r       io.Reader
	trailer string
	buf     []byte
	chunk   []byte
}

// NewCapture wraps r. An empty trailer selects DefaultTrailer.
func NewCapture(r io.Reader, trailer string) *Capture {
	if trailer == "" {
		trailer = DefaultTrailer
	}
	return &Capture{r: r, trailer: trailer, chunk: make([]byte, 256)}
}

// Next returns the next window. It reads until a trailer is buffered or the
// reader has nothing more for now, in which case ErrNoWindow is returned.
// Any other read error is returned as is.
func (c *Capture) Next() (string, error) {
	for {
		if w, rest, ok := ExtractWindow(c.buf, c.trailer); ok {
			c.buf = append(c.buf[:0], rest...)
			return w, nil
		}
		n, err := c.r.Read(c.chunk)
		c.buf = append(c.buf, c.chunk[:n]...)
		if len(c.buf) > maxCaptureBuffer {
			c.buf = append(c.buf[:0], c.buf[len(c.buf)-maxCaptureBuffer:]...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if n == 0 || errors.Is(err, io.EOF) {
			if w, rest, ok := ExtractWindow(c.buf, c.trailer); ok {
				c.buf = append(c.buf[:0], rest...)
				return w, nil
			}
			return "", ErrNoWindow
		}
	}
}
