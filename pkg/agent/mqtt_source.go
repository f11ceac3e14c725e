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

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
)

const (
	mqttQoS            byte = 1
	mqttKeepAlive           = 30 * time.Second
	mqttPingTimeout         = 10 * time.Second
	mqttDisconnectWait uint = 250
	mqttBacklog             = 16
)

// MQTTSource subscribes to <prefix>/<device id>/commands on a broker.
// Paho reconnects and resubscribes on its own; messages are handed to the
// Run loop so nothing is dispatched after shutdown.
type MQTTSource struct {
	broker         string
	topicPrefix    string
	reconnectDelay time.Duration
	newClient      func(*mqtt.ClientOptions) mqtt.Client
	recorder       metrics.Recorder
	logger         logger.Logger
}

// MQTTConfig wires an MQTTSource.
type MQTTConfig struct {
	Broker         string
	TopicPrefix    string
	ReconnectDelay time.Duration
	Recorder       metrics.Recorder
	Logger         logger.Logger
}

// NewMQTTSource creates an MQTTSource.
func NewMQTTSource(cfg MQTTConfig) *MQTTSource {
	s := &MQTTSource{
		broker:         cfg.Broker,
		topicPrefix:    cfg.TopicPrefix,
		reconnectDelay: cfg.ReconnectDelay,
		newClient:      mqtt.NewClient,
		recorder:       cfg.Recorder,
		logger:         cfg.Logger,
	}

	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}

	return s
}

// Name implements CommandSource.
func (*MQTTSource) Name() string {
	return "mqtt"
}

// Topic returns the command topic for deviceID.
func (s *MQTTSource) Topic(deviceID string) string {
	return fmt.Sprintf("%s/%s/commands", s.topicPrefix, deviceID)
}

// Run implements CommandSource.
func (s *MQTTSource) Run(ctx context.Context, identity models.DeviceIdentity, d Dispatcher) error {
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

	topic := s.Topic(identity.ID)
	payloads := make(chan []byte, mqttBacklog)

	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case payloads <- msg.Payload():
		case <-ctx.Done():
		}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID("fieldagent-" + identity.ID).
		SetOrderMatters(false).
		SetCleanSession(true).
		SetKeepAlive(mqttKeepAlive).
		SetPingTimeout(mqttPingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(s.reconnectDelay)

	opts.OnConnect = func(c mqtt.Client) {
		s.logger.Info().Str("broker", s.broker).Msg("Connected to MQTT broker")

		if token := c.Subscribe(topic, mqttQoS, onMessage); token.Wait() && token.Error() != nil {
			s.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT subscribe failed")
			s.recorder.IncSourceError(s.Name())
		} else {
			s.logger.Info().Str("topic", topic).Msg("Subscribed to MQTT command topic")
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("MQTT connection lost")
		s.recorder.IncSourceError(s.Name())
	}

	client := s.newClient(opts)
	token := client.Connect()

	select {
	case <-ctx.Done():
		client.Disconnect(mqttDisconnectWait)

		return nil
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect %s: %w", s.broker, err)
		}
	}

	defer client.Disconnect(mqttDisconnectWait)

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-payloads:
			h.handlePayload(ctx, payload)
		}
	}
}
