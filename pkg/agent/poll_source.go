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
	"time"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/transport"
)

// PollSource asks the panel for queued commands every interval. Failures
// are logged and the next poll proceeds on schedule.
type PollSource struct {
	poller   CommandPoller
	interval time.Duration
	clock    Clock
	recorder metrics.Recorder
	logger   logger.Logger
}

// NewPollSource creates a PollSource.
func NewPollSource(poller CommandPoller, interval time.Duration, clock Clock, rec metrics.Recorder, log logger.Logger) *PollSource {
	if clock == nil {
		clock = RealClock()
	}

	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return &PollSource{
		poller:   poller,
		interval: interval,
		clock:    clock,
		recorder: rec,
		logger:   log,
	}
}

// Name implements CommandSource.
func (*PollSource) Name() string {
	return "poll"
}

// Run implements CommandSource.
func (p *PollSource) Run(ctx context.Context, identity models.DeviceIdentity, d Dispatcher) error {
	if !identity.Registered() {
		return ErrUnregistered
	}

	h := &remoteHandler{
		source:   p.Name(),
		identity: identity,
		dispatch: d,
		recorder: p.recorder,
		logger:   p.logger,
	}

	p.logger.Info().Dur("interval", p.interval).Msg("Command listener started")

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			p.pollOnce(ctx, identity.ID, h)
		}
	}
}

func (p *PollSource) pollOnce(ctx context.Context, deviceID string, h *remoteHandler) {
	cmds, err := p.poller.PendingCommands(ctx, deviceID)

	switch {
	case errors.Is(err, transport.ErrPollingUnsupported):
		p.logger.Debug().Err(err).Msg("Panel does not support command polling")

		return
	case err != nil:
		p.logger.Warn().Err(err).Msg("Failed to poll commands")
		p.recorder.IncSourceError(p.Name())

		return
	}

	for _, rc := range cmds {
		if ctx.Err() != nil {
			return
		}

		h.handle(ctx, rc)
	}
}
