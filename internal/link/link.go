// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package link hands encoded frames to whatever carries them off the payload.
package link

import (
	"errors"
	"fmt"
)

// Link transmits one complete frame. There is no acknowledgement and no
// retransmission: an error means this frame is lost.
type Link interface {
	Send(frame string) error
}

// Fanout sends every frame to all of its links.
type Fanout []Link

// Send implements Link. Every link is tried even when an earlier one fails.
func (f Fanout) Send(frame string) error {
	var errs []error
	for i, l := range f {
		if err := l.Send(frame); err != nil {
			errs = append(errs, fmt.Errorf("link %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
