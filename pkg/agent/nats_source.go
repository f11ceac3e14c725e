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
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
)

const natsBacklog = 64

// NATSSource subscribes to <prefix>.<device id>.commands.
type NATSSource struct {
	url            string
	subjectPrefix  string
	reconnectDelay time.Duration
	recorder       metrics.Recorder
	logger         logger.Logger
}

// NATSConfig wires a NATSSource.
type NATSConfig struct {
	URL            string
	SubjectPrefix  string
	ReconnectDelay time.Duration
	Recorder       metrics.Recorder
	Logger         logger.Logger
}

// NewNATSSource creates a NATSSource.
func NewNATSSource(cfg NATSConfig) *NATSSource {
	s := &NATSSource{
		url:            cfg.URL,
		subjectPrefix:  cfg.SubjectPrefix,
		reconnectDelay: cfg.ReconnectDelay,
		recorder:       cfg.Recorder,
		logger:         cfg.Logger,
	}

	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}

	return s
}

// Name implements CommandSource.
func (*NATSSource) Name() string {
	return "nats"
}

// Subject returns the command subject for deviceID.
func (s *NATSSource) Subject(deviceID string) string {
	return fmt.Sprintf("%s.%s.commands", s.subjectPrefix, deviceID)
}

// Run implements CommandSource.
func (s *NATSSource) Run(ctx context.Context, identity models.DeviceIdentity, d Dispatcher) error {
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

	nc, err := nats.Connect(s.url,
		nats.Name("fieldagent-"+identity.ID),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(s.reconnectDelay),
		nats.ConnectHandler(func(nc *nats.Conn) {
			s.logger.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn().Err(err).Msg("NATS disconnected")
				s.recorder.IncSourceError(s.Name())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info().Str("url", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			s.logger.Warn().Err(err).Msg("NATS error")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, natsBacklog)
	subject := s.Subject(identity.ID)

	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	defer func() { _ = sub.Unsubscribe() }()

	s.logger.Info().Str("subject", subject).Msg("Subscribed to NATS command subject")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			h.handlePayload(ctx, msg.Data)
		}
	}
}
