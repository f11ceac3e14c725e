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
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
)

var errEmptyDeviceID = errors.New("panel returned an empty device id")

const defaultRegistrationRetry = 30 * time.Second

// HandshakeConfig describes the device being registered.
type HandshakeConfig struct {
	IPAddress   string
	NumChannels int
	// FailOnError makes the first failed attempt fatal. Otherwise the
	// handshake is retried every RetryInterval until it succeeds or ctx ends.
	FailOnError   bool
	RetryInterval time.Duration
}

// Handshake moves a device from unregistered to registered.
type Handshake struct {
	registrar Registrar
	cfg       HandshakeConfig
	clock     Clock
	recorder  metrics.Recorder
	logger    logger.Logger
}

// NewHandshake creates a Handshake.
func NewHandshake(registrar Registrar, cfg HandshakeConfig, clock Clock, rec metrics.Recorder, log logger.Logger) *Handshake {
	if clock == nil {
		clock = RealClock()
	}

	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRegistrationRetry
	}

	return &Handshake{
		registrar: registrar,
		cfg:       cfg,
		clock:     clock,
		recorder:  rec,
		logger:    log,
	}
}

// Register returns identity unchanged, without contacting the panel, when
// it already carries an ID. Otherwise it registers and returns identity
// with the panel-assigned ID. Errors wrap models.ErrRegistration, or are
// ctx.Err() if ctx ended while retrying.
func (h *Handshake) Register(ctx context.Context, identity models.DeviceIdentity) (models.DeviceIdentity, error) {
	if identity.Registered() {
		h.logger.Info().Str("device_id", identity.ID).Msg("Using configured device id; skipping registration")

		return identity, nil
	}

	for attempt := 1; ; attempt++ {
		h.logger.Info().Int("attempt", attempt).Msg("Registering device with panel")

		id, err := h.attempt(ctx, identity)
		h.recorder.ObserveRegistration(err == nil)

		if err == nil {
			h.logger.Info().Str("device_id", id).Msg("Device registered successfully")

			return identity.WithID(id), nil
		}

		if h.cfg.FailOnError {
			h.logger.Error().Err(err).Msg("Failed to register device")

			return identity, err
		}

		h.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", h.cfg.RetryInterval).
			Msg("Device registration failed; will retry")

		if err := sleep(ctx, h.clock, h.cfg.RetryInterval); err != nil {
			return identity, err
		}
	}
}

func (h *Handshake) attempt(ctx context.Context, identity models.DeviceIdentity) (string, error) {
	req := models.RegistrationRequest{
		Name:       identity.Name,
		DeviceType: identity.DeviceType,
		IPAddress:  h.cfg.IPAddress,
		Metadata: models.RegistrationMetadata{
			FirmwareVersion: identity.FirmwareVersion,
		},
	}

	if identity.DeviceType == models.DeviceTypeSwitch {
		n := h.cfg.NumChannels
		req.Metadata.Channels = &n
	}

	resp, err := h.registrar.Register(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrRegistration, err)
	}

	if resp.ID == "" {
		return "", fmt.Errorf("%w: %w", models.ErrRegistration, errEmptyDeviceID)
	}

	return resp.ID, nil
}
