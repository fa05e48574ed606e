// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package profile

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// liveHub fans per-batch ingest summaries out to connected dashboard
// clients. Delivery is loss-tolerant: a slow or dead client is dropped,
// never buffered.
type liveHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newLiveHub() *liveHub {
	return &liveHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *liveHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *liveHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

// broadcast sends one event to every client, dropping clients whose
// writes fail.
func (h *liveHub) broadcast(event LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *liveHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed carries only aggregate counts; any origin may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleLive handles GET /v1/profile/live: upgrades to a websocket and
// streams per-batch ingest summaries until the client disconnects.
func (h *Handlers) HandleLive(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLive")

	conn, err := liveUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	h.svc.hub.add(conn)
	logger.Info("live feed client connected",
		slog.Int("clients", h.svc.hub.clientCount()))

	// Reads only drain control frames; the feed is write-only.
	go func() {
		defer h.svc.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
