// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// publishTimeout bounds how long a publish may hold up the caller.
const publishTimeout = 2 * time.Second

// Broker publishes frames on an MQTT topic.
type Broker struct {
	client mqtt.Client
	topic  string
}

// NewBroker wraps a connected client.
func NewBroker(client mqtt.Client, topic string) *Broker {
	return &Broker{client: client, topic: topic}
}

// Send implements Link.
func (b *Broker) Send(frame string) error {
	return b.Publish([]byte(frame))
}

// Publish sends an arbitrary payload on the broker topic, retained so late
// subscribers see the latest value.
func (b *Broker) Publish(payload []byte) error {
	token := b.client.Publish(b.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timed out", b.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", b.topic, err)
	}
	return nil
}

// Connect dials the broker with the given client ID.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			glog.Warningf("mqtt: connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	glog.Infof("mqtt: connected to %s as %s", broker, clientID)
	return client, nil
}
