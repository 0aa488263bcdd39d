// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/relabs-tech/balloon_payload/internal/config"
	"github.com/relabs-tech/balloon_payload/internal/link"
	"github.com/relabs-tech/balloon_payload/internal/sensors"
	"github.com/relabs-tech/balloon_payload/internal/storage"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

// groundReadTimeout paces the capture loop when the radio is silent.
const groundReadTimeout = 500 * time.Millisecond

// Publisher sends an encoded record somewhere, typically MQTT.
type Publisher interface {
	Publish(payload []byte) error
}

// RecordLog stores received windows.
type RecordLog interface {
	Append(fields ...string) error
}

// RecordMessage is the JSON form of a decoded record.
type RecordMessage struct {
	telemetry.Record
	Received time.Time `json:"received"`
	Degraded []string  `json:"degraded,omitempty"`
}

// GroundStation decodes received windows and hands every record to the
// log, the publisher and the websocket hub. Each of them is optional.
type GroundStation struct {
	Log       RecordLog
	Publisher Publisher
	Hub       *RecordHub

	decoder *telemetry.Decoder
	now     func() time.Time
}

// NewGroundStation returns a station with a fresh decoder.
func NewGroundStation() *GroundStation {
	return &GroundStation{decoder: telemetry.NewDecoder(), now: time.Now}
}

// Handle decodes one window. Sink failures are logged, never returned: the
// record has already been decoded and the next window must not wait.
func (g *GroundStation) Handle(window string) RecordMessage {
	received := g.now().UTC()
	rec := g.decoder.Decode(window)
	msg := RecordMessage{Record: rec, Received: received}
	for _, fe := range rec.Errors {
		msg.Degraded = append(msg.Degraded, fe.Error())
	}
	glog.V(1).Infof("ground: record %d, %d degraded fields", rec.Seq, len(rec.Errors))

	if g.Log != nil {
		if err := g.Log.Append(received.Format(time.RFC3339Nano), window); err != nil {
			glog.Warningf("ground: record log: %v", err)
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		glog.Errorf("ground: json marshal error: %v", err)
		return msg
	}
	if g.Publisher != nil {
		if err := g.Publisher.Publish(payload); err != nil {
			glog.Warningf("ground: publish: %v", err)
		}
	}
	if g.Hub != nil {
		g.Hub.Broadcast(payload)
	}
	return msg
}

// Run reads windows from c until ctx is cancelled or the stream fails.
func (g *GroundStation) Run(ctx context.Context, c *telemetry.Capture) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		window, err := c.Next()
		if errors.Is(err, telemetry.ErrNoWindow) {
			continue
		}
		if err != nil {
			return fmt.Errorf("ground: capture: %w", err)
		}
		g.Handle(window)
	}
}

// Handler serves the live record stream and the latest record. It creates
// the hub if none is set.
func (g *GroundStation) Handler() http.Handler {
	if g.Hub == nil {
		g.Hub = NewRecordHub()
	}
	mux := http.NewServeMux()
	mux.Handle("/ws/records", g.Hub)
	mux.HandleFunc("/api/record", func(w http.ResponseWriter, r *http.Request) {
		last := g.Hub.Last()
		if last == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(last)
	})
	return mux
}

// RunGroundStation receives frames on the ground radio until ctx is
// cancelled, using the global config.
func RunGroundStation(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("ground: config not initialised")
	}

	port, err := sensors.OpenSerial(cfg.GroundSerialPort, cfg.GroundBaudRate, groundReadTimeout)
	if err != nil {
		return fmt.Errorf("ground: radio: %w", err)
	}
	defer port.Close()
	glog.Infof("ground: listening on %s at %d baud", cfg.GroundSerialPort, cfg.GroundBaudRate)

	recordLog, err := storage.NewRotatingLog(cfg.DataDir, "ground", cfg.LogNumLines, "received,frame")
	if err != nil {
		return fmt.Errorf("ground: %w", err)
	}
	defer recordLog.Close()

	g := NewGroundStation()
	g.Log = recordLog
	g.Hub = NewRecordHub()

	if cfg.MQTTBroker != "" {
		client, err := link.Connect(cfg.MQTTBroker, cfg.MQTTClientIDGround)
		if err != nil {
			glog.Warningf("ground: MQTT disabled: %v", err)
		} else {
			defer client.Disconnect(250)
			g.Publisher = link.NewBroker(client, cfg.TopicRecord)
		}
	}

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.WebServerPort), Handler: g.Handler()}
	go func() {
		glog.Infof("ground: web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("ground: web server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = g.Run(ctx, telemetry.NewCapture(port, cfg.Trailer()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
