// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modules

import (
	"fmt"

	"github.com/golang/glog"
)

// Record is the registry's view of one module.
type Record struct {
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	LastReading string `json:"last_reading"`
}

type entry struct {
	module Module
	active bool
}

// Registry keeps modules in registration order. It is owned by a single
// scheduler and is not safe for concurrent use.
type Registry struct {
	entries []*entry
	byName  map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*entry)}
}

// Register activates m and appends it. An activation failure is logged and
// returned, and m is kept in the registry as permanently inactive.
func (r *Registry) Register(m Module) error {
	name := m.Name()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("module %q already registered", name)
	}

	e := &entry{module: m}
	r.entries = append(r.entries, e)
	r.byName[name] = e

	if err := m.Activate(); err != nil {
		glog.Errorf("registry: %s failed to activate: %v", name, err)
		return fmt.Errorf("activate %s: %w", name, err)
	}
	if !m.IsActive() {
		glog.Errorf("registry: %s did not report active after activation", name)
		return fmt.Errorf("activate %s: module not active", name)
	}
	e.active = true
	glog.Infof("registry: %s active", name)
	return nil
}

// Modules returns every registered module in registration order.
func (r *Registry) Modules() []Module {
	out := make([]Module, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.module)
	}
	return out
}

// Active returns the modules that activated, in registration order.
func (r *Registry) Active() []Module {
	out := make([]Module, 0, len(r.entries))
	for _, e := range r.entries {
		if e.active {
			out = append(out, e.module)
		}
	}
	return out
}

// Lookup finds a module by name, for diagnostics.
func (r *Registry) Lookup(name string) (Module, bool) {
	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return e.module, true
}

// Records summarises every module.
func (r *Registry) Records() []Record {
	out := make([]Record, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, Record{
			Name:        e.module.Name(),
			Active:      e.active,
			LastReading: e.module.Report(),
		})
	}
	return out
}
