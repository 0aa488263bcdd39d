// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package storage persists module readings as append-only delimited records.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// ErrExhausted marks a write that failed because the medium is full.
var ErrExhausted = errors.New("storage: no space left")

// Extension of every record file.
const Extension = ".csv"

// RotatingLog appends records to <dir>/<name>_<n>.csv and moves on to a new
// file after NumLines records. n is always one greater than the highest
// counter already present in dir.
type RotatingLog struct {
	dir      string
	name     string
	numLines int
	header   string

	pattern *regexp.Regexp
	file    *os.File
	sink    io.Writer
	w       *bufio.Writer
	counter int
	lines   int
}

// NewRotatingLog prepares a log; no file is created until the first Append.
// header, if not empty, is written as the first line of every file and does
// not count towards numLines.
func NewRotatingLog(dir, name string, numLines int, header string) (*RotatingLog, error) {
	if numLines <= 0 {
		return nil, fmt.Errorf("storage: numLines must be positive, got %d", numLines)
	}
	if name == "" {
		return nil, fmt.Errorf("storage: empty log name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, classify(err))
	}
	return &RotatingLog{
		dir:      dir,
		name:     name,
		numLines: numLines,
		header:   header,
		pattern:  regexp.MustCompile("^" + regexp.QuoteMeta(name) + `_(\d+)` + regexp.QuoteMeta(Extension) + "$"),
		counter:  -1,
	}, nil
}

// Path is the file currently written, or "" before the first Append.
func (l *RotatingLog) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Counter is the suffix of the current file, -1 before the first Append.
func (l *RotatingLog) Counter() int { return l.counter }

// Append writes fields joined by commas as one record.
func (l *RotatingLog) Append(fields ...string) error {
	if l.file == nil {
		if err := l.open(); err != nil {
			return err
		}
	}
	if err := l.write(strings.Join(fields, ",") + "\n"); err != nil {
		return fmt.Errorf("storage: write %s: %w", l.file.Name(), classify(err))
	}
	l.lines++
	if l.lines >= l.numLines {
		return l.closeFile()
	}
	return nil
}

// Close flushes and closes the current file.
func (l *RotatingLog) Close() error {
	if l.file == nil {
		return nil
	}
	return l.closeFile()
}

// write flushes one record. A failed record is discarded together with the
// writer's sticky error so the next Append can succeed once space frees up.
func (l *RotatingLog) write(record string) error {
	_, err := l.w.WriteString(record)
	if err == nil {
		err = l.w.Flush()
	}
	if err != nil {
		l.w.Reset(l.sink)
	}
	return err
}

func (l *RotatingLog) open() error {
	next, err := l.nextCounter()
	if err != nil {
		return err
	}
	path := filepath.Join(l.dir, l.name+"_"+strconv.Itoa(next)+Extension)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", path, classify(err))
	}
	l.file, l.sink = f, f
	l.w = bufio.NewWriter(f)
	l.counter = next
	l.lines = 0
	if l.header != "" {
		if _, err := l.w.WriteString(l.header + "\n"); err != nil {
			return fmt.Errorf("storage: write header %s: %w", path, classify(err))
		}
	}
	return nil
}

func (l *RotatingLog) closeFile() error {
	flushErr := l.w.Flush()
	closeErr := l.file.Close()
	l.file, l.sink, l.w = nil, nil, nil
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("storage: close: %w", classify(err))
	}
	return nil
}

// nextCounter scans dir for files of this log.
func (l *RotatingLog) nextCounter() (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, fmt.Errorf("storage: scan %s: %w", l.dir, classify(err))
	}
	next := 0
	for _, e := range entries {
		m := l.pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

func classify(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %w", ErrExhausted, err)
	}
	return err
}
