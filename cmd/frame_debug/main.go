// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// frame_debug encodes a sample frame and decodes it back, or decodes the
// windows given as arguments.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/relabs-tech/balloon_payload/internal/app"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if err := app.RunFrameDebug(os.Stdout, time.Now(), flag.Args()); err != nil {
		glog.Exitf("fatal: %v", err)
	}
}
