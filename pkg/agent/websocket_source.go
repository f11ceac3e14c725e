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
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/version"
)

const (
	defaultPingInterval = 25 * time.Second
	wsWriteWait         = 5 * time.Second
	wsHandshakeTimeout  = 10 * time.Second
)

// WebSocketSource listens to the panel's websocket broadcast and executes
// command_sent events addressed to this device. A dropped connection is
// re-dialed after the reconnect delay.
type WebSocketSource struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	pingInterval   time.Duration
	clock          Clock
	recorder       metrics.Recorder
	logger         logger.Logger
}

// WebSocketConfig wires a WebSocketSource.
type WebSocketConfig struct {
	URL            string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	Clock          Clock
	Recorder       metrics.Recorder
	Logger         logger.Logger
}

// NewWebSocketSource creates a WebSocketSource.
func NewWebSocketSource(cfg WebSocketConfig) *WebSocketSource {
	s := &WebSocketSource{
		url: cfg.URL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: wsHandshakeTimeout,
		},
		reconnectDelay: cfg.ReconnectDelay,
		pingInterval:   cfg.PingInterval,
		clock:          cfg.Clock,
		recorder:       cfg.Recorder,
		logger:         cfg.Logger,
	}

	if s.pingInterval <= 0 {
		s.pingInterval = defaultPingInterval
	}

	if s.clock == nil {
		s.clock = RealClock()
	}

	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}

	return s
}

// Name implements CommandSource.
func (*WebSocketSource) Name() string {
	return "websocket"
}

// Run implements CommandSource.
func (s *WebSocketSource) Run(ctx context.Context, identity models.DeviceIdentity, d Dispatcher) error {
	if !identity.Registered() {
		return ErrUnregistered
	}

	h := &remoteHandler{
		source:   s.Name(),
		identity: identity,
		dispatch: d,
		recorder: s.recorder,
		logger:   s.logger,
	}

	for {
		err := s.session(ctx, h)
		if ctx.Err() != nil {
			return nil
		}

		s.recorder.IncSourceError(s.Name())
		s.logger.Warn().
			Err(err).
			Str("url", s.url).
			Dur("retry_in", s.reconnectDelay).
			Msg("WebSocket connection lost; reconnecting")

		if sleep(ctx, s.clock, s.reconnectDelay) != nil {
			return nil
		}
	}
}

// session holds one connection until it fails or ctx ends.
func (s *WebSocketSource) session(ctx context.Context, h *remoteHandler) error {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	defer func() { _ = conn.Close() }()

	s.logger.Info().Str("url", s.url).Msg("Connected to panel websocket")

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the connection is what unblocks ReadMessage on shutdown.
	stop := context.AfterFunc(sessCtx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		_ = conn.Close()
	})
	defer stop()

	go s.keepalive(sessCtx, conn)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		h.handlePayload(ctx, payload)
	}
}

// keepalive sends the panel's application-level ping. It is the only
// writer of data frames on conn.
func (s *WebSocketSource) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := s.clock.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

			if err := conn.WriteJSON(map[string]string{"type": messageTypePing}); err != nil {
				s.logger.Debug().Err(err).Msg("WebSocket ping failed")
				_ = conn.Close()

				return
			}
		}
	}
}
