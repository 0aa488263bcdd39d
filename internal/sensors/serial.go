// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// OpenSerial opens a UART in 8N1 mode. With a non-zero timeout a read
// returns after that much silence with whatever arrived, possibly nothing,
// so callers treat an empty read as "no new data".
func OpenSerial(port string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}
	if timeout > 0 {
		// The driver counts in tenths of a second.
		ms := uint(timeout / time.Millisecond)
		if ms < 100 {
			ms = 100
		}
		opts.InterCharacterTimeout = ms / 100 * 100
		opts.MinimumReadSize = 0
	}

	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial open %s at %d baud: %w", port, baud, err)
	}
	return p, nil
}
