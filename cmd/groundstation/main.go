// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/relabs-tech/balloon_payload/internal/app"
	"github.com/relabs-tech/balloon_payload/internal/config"
)

func main() {
	configPath := flag.String("config", "./balloon_config.txt", "path to configuration file")
	flag.Parse()
	defer glog.Flush()

	glog.Info("starting balloon ground station (radio → records → MQTT/websocket)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		glog.Exitf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGroundStation(ctx); err != nil {
		glog.Exitf("fatal: %v", err)
	}
}
