// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// PathPlaceholder in the capture command is replaced by the image path.
	PathPlaceholder = "{path}"
	imageExtension  = ".jpg"
	captureTimeout  = 10 * time.Second
)

var imageName = regexp.MustCompile(`^(\d+)` + regexp.QuoteMeta(imageExtension) + `$`)

// CommandRunner runs an external program to completion.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Camera takes one still per update by running a capture command such as
// "libcamera-still -n -o {path}". Images are numbered <dir>/<n>.jpg and
// numbering continues after the highest image already in dir.
type Camera struct {
	Base
	dir  string
	argv []string
	run  CommandRunner
	next int
}

// NewCamera builds an inactive camera module. run may be nil to execute
// the command with os/exec.
func NewCamera(name, dir, command string, run CommandRunner) *Camera {
	if run == nil {
		run = execRunner
	}
	return &Camera{Base: newBase(name), dir: dir, argv: strings.Fields(command), run: run}
}

// Activate implements Module.
func (c *Camera) Activate() error {
	if len(c.argv) == 0 {
		return errors.New("camera: no capture command configured")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("camera: create %s: %w", c.dir, err)
	}
	next, err := nextImage(c.dir)
	if err != nil {
		return err
	}
	c.next = next
	c.markActive()
	return nil
}

// Update implements Module.
func (c *Camera) Update(ctx context.Context) error {
	path := filepath.Join(c.dir, strconv.Itoa(c.next)+imageExtension)
	args := make([]string, 0, len(c.argv)-1)
	for _, a := range c.argv[1:] {
		args = append(args, strings.ReplaceAll(a, PathPlaceholder, path))
	}

	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()
	if err := c.run(ctx, c.argv[0], args...); err != nil {
		return fmt.Errorf("camera: capture %s: %w", path, err)
	}
	c.next++
	c.setReading(path)
	return nil
}

// NextImage is the number the next capture will use.
func (c *Camera) NextImage() int { return c.next }

func nextImage(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("camera: scan %s: %w", dir, err)
	}
	next := 0
	for _, e := range entries {
		m := imageName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
