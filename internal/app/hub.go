// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// clientQueue is how many records a slow client may lag behind before
// records are dropped for it.
const clientQueue = 16

// RecordHub fans decoded records out to websocket clients. A new client
// first receives the latest record.
type RecordHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	last    []byte
}

// NewRecordHub returns a hub with no clients.
func NewRecordHub() *RecordHub {
	return &RecordHub{clients: make(map[chan []byte]struct{})}
}

// Broadcast queues payload for every client.
func (h *RecordHub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = payload
	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
			glog.V(1).Info("hub: client lagging, record dropped")
		}
	}
}

// Last is the latest record, nil if none was broadcast yet.
func (h *RecordHub) Last() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Clients is the number of connected clients.
func (h *RecordHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *RecordHub) subscribe() chan []byte {
	ch := make(chan []byte, clientQueue)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil {
		ch <- h.last
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *RecordHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, ch)
}

// ServeHTTP upgrades the request and streams records until the client
// goes away.
func (h *RecordHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("hub: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// The stream is one way; reading only notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					glog.V(1).Infof("hub: websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case payload := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				glog.V(1).Infof("hub: websocket write error: %v", err)
				return
			}
		}
	}
}
