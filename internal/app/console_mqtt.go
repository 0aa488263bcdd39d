// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/relabs-tech/balloon_payload/internal/config"
	"github.com/relabs-tech/balloon_payload/internal/link"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

// Console prints frames mirrored by the payload and records published by
// the ground station. Handlers may be called from MQTT goroutines.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	decoder *telemetry.Decoder
}

// NewConsole writes to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, decoder: telemetry.NewDecoder()}
}

// HandleFrame decodes a raw frame payload.
func (c *Console) HandleFrame(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.decoder.Decode(strings.TrimSpace(string(payload)))
	fmt.Fprintf(c.w, "[FRAME] %s\n", formatRecord(rec, len(rec.Errors)))
}

// HandleRecord prints a ground station RecordMessage.
func (c *Console) HandleRecord(payload []byte) {
	var msg RecordMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		glog.Warningf("console: record unmarshal error: %v", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[RECORD] %s\n", formatRecord(msg.Record, len(msg.Degraded)))
}

func formatRecord(rec telemetry.Record, degraded int) string {
	return fmt.Sprintf(
		"#%d %s %s lat=%.6f lon=%.6f alt=%.2f sats=%.0f speed=%.2fkn itemp=%.2f etemp=%.2f cpu=%.2f rh=%.2f degraded=%d",
		rec.Seq, rec.Source, rec.Time.Format("15:04:05.00"),
		rec.LatitudeDeg, rec.LongitudeDeg, rec.Altitude.Num, rec.NumSats.Num, rec.GroundSpeed.Num,
		rec.InternalTemp.Num, rec.ExternalTemp.Num, rec.CPUTemp.Num, rec.Humidity.Num, degraded,
	)
}

func subscribe(client mqtt.Client, topic string, handle func([]byte)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handle(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("console: subscribe %s: %w", topic, err)
	}
	glog.Infof("console: subscribed to %s", topic)
	return nil
}

// RunConsoleMQTT prints everything on the frame and record topics until
// ctx is cancelled.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("console: config not initialised")
	}
	if cfg.MQTTBroker == "" {
		return errors.New("console: MQTT_BROKER is not set")
	}

	client, err := link.Connect(cfg.MQTTBroker, cfg.MQTTClientIDGround+"-console")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	c := NewConsole(os.Stdout)
	if err := subscribe(client, cfg.TopicFrame, c.HandleFrame); err != nil {
		return err
	}
	if err := subscribe(client, cfg.TopicRecord, c.HandleRecord); err != nil {
		return err
	}

	<-ctx.Done()
	glog.Info("console: shutting down")
	return nil
}
