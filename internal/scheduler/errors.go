// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scheduler

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/balloon_payload/internal/storage"
)

// Stage is the cycle step a module failed in.
type Stage string

const (
	StageUpdate   Stage = "update"
	StageTransmit Stage = "transmit"
	StagePersist  Stage = "persist"
)

// ErrPanic wraps a recovered panic from module code.
var ErrPanic = errors.New("module panicked")

// ModuleError ties a failure to the module and step it came from.
type ModuleError struct {
	Module string
	Stage  Stage
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Module, e.Stage, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

// Kind names the error class for logs.
func (e *ModuleError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrPanic):
		return "panic"
	case errors.Is(e.Err, storage.ErrExhausted):
		return "storage exhausted"
	default:
		return "error"
	}
}
