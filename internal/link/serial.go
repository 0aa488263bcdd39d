// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
)

// Radio writes frames to the radio board over a serial line and reads back
// the single status line the board echoes after each transmission.
type Radio struct {
	port io.ReadWriter
	r    *bufio.Reader

	// LastReply is the most recent status line, without line ending.
	LastReply string
}

// NewRadio wraps an open serial port. The port is expected to time out
// reads so a silent board does not stall the caller.
func NewRadio(port io.ReadWriter) *Radio {
	return &Radio{port: port, r: bufio.NewReader(port)}
}

// Send implements Link.
func (r *Radio) Send(frame string) error {
	if _, err := io.WriteString(r.port, frame); err != nil {
		return fmt.Errorf("radio write: %w", err)
	}
	line, err := r.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("radio read reply: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		glog.V(1).Info("radio: no reply from board")
		return nil
	}
	r.LastReply = line
	glog.V(1).Infof("radio: board replied %q", line)
	return nil
}
