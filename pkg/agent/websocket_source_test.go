/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
)

// fakePanelHub upgrades every request and hands the connection to onConn.
type fakePanelHub struct {
	upgrader    websocket.Upgrader
	connections atomic.Int32
	onConn      func(n int32, conn *websocket.Conn)

	mu       sync.Mutex
	received []string
	agents   []string
}

func (h *fakePanelHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	h.mu.Lock()
	h.agents = append(h.agents, r.Header.Get("User-Agent"))
	h.mu.Unlock()

	h.onConn(h.connections.Add(1), conn)
}

func (h *fakePanelHub) readAll(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		h.mu.Lock()
		h.received = append(h.received, string(msg))
		h.mu.Unlock()
	}
}

func (h *fakePanelHub) Received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.received...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebSocketSourceExecutesBroadcastCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := &fakePanelHub{}
	hub.onConn = func(_ int32, conn *websocket.Conn) {
		_ = conn.WriteJSON(models.RemoteCommand{
			Type:       "command_sent",
			DeviceID:   "dev-2",
			Command:    "all_on",
			CommandID:  "other",
			Parameters: nil,
		})
		_ = conn.WriteJSON(models.RemoteCommand{
			Type:       "command_sent",
			DeviceID:   "dev-1",
			Command:    "toggle",
			CommandID:  "c-7",
			Parameters: channelParam(0),
		})

		hub.readAll(conn)
	}

	srv := httptest.NewServer(hub)
	defer srv.Close()

	d, store := newRecordingDispatcher(t, 4)

	src := NewWebSocketSource(WebSocketConfig{
		URL:            wsURL(srv),
		ReconnectDelay: 10 * time.Millisecond,
		PingInterval:   10 * time.Millisecond,
		Logger:         logger.NewTestLogger(),
	})
	assert.Equal(t, "websocket", src.Name())

	done := runAsync(func() error { return src.Run(ctx, testIdentity, d) })

	require.Eventually(t, func() bool {
		return len(d.Commands()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, msg := range hub.Received() {
			if msg == `{"type":"ping"}`+"\n" || msg == `{"type":"ping"}` {
				return true
			}
		}

		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, waitResult(t, done))

	cmd := d.Commands()[0]
	assert.Equal(t, "toggle 0", cmd.String())
	assert.Equal(t, "c-7", cmd.ID)

	on, err := store.ReadChannel(0)
	require.NoError(t, err)
	assert.True(t, on)

	hub.mu.Lock()
	assert.True(t, strings.HasPrefix(hub.agents[0], "fieldagent/"))
	hub.mu.Unlock()
}

func TestWebSocketSourceReconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := &fakePanelHub{}
	hub.onConn = func(n int32, conn *websocket.Conn) {
		if n == 1 {
			return
		}

		_ = conn.WriteJSON(models.RemoteCommand{Type: "command_sent", Command: "all_on"})

		hub.readAll(conn)
	}

	srv := httptest.NewServer(hub)
	defer srv.Close()

	d, _ := newRecordingDispatcher(t, 4)
	rec := newCountingRecorder()

	src := NewWebSocketSource(WebSocketConfig{
		URL:            wsURL(srv),
		ReconnectDelay: 10 * time.Millisecond,
		PingInterval:   time.Hour,
		Recorder:       rec,
		Logger:         logger.NewTestLogger(),
	})

	done := runAsync(func() error { return src.Run(ctx, testIdentity, d) })

	require.Eventually(t, func() bool {
		return len(d.Commands()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, waitResult(t, done))

	assert.GreaterOrEqual(t, hub.connections.Load(), int32(2))
	assert.GreaterOrEqual(t, rec.SourceErrors("websocket"), 1)
}

func TestWebSocketSourceRetriesUnreachablePanel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	d, _ := newRecordingDispatcher(t, 4)
	rec := newCountingRecorder()

	src := NewWebSocketSource(WebSocketConfig{
		URL:            "ws://127.0.0.1:1/ws",
		ReconnectDelay: 5 * time.Millisecond,
		Recorder:       rec,
		Logger:         logger.NewTestLogger(),
	})

	done := runAsync(func() error { return src.Run(ctx, testIdentity, d) })

	require.Eventually(t, func() bool {
		return rec.SourceErrors("websocket") >= 2
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, waitResult(t, done))
}
