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

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/sampling"
	"github.com/carverauto/fieldagent/pkg/state"
)

// SnapshotBuilder assembles a StatusSnapshot from device state, the
// sampling source and host stats.
type SnapshotBuilder struct {
	switches *state.Store[bool]
	readings *state.Store[float64]
	sampler  sampling.Source
	host     HostStats
	clock    Clock
	recorder metrics.Recorder
	logger   logger.Logger
}

// SnapshotConfig wires a SnapshotBuilder. Switches is set for relay
// devices; Readings and Sampler for sensors. Host may be nil.
type SnapshotConfig struct {
	Switches *state.Store[bool]
	Readings *state.Store[float64]
	Sampler  sampling.Source
	Host     HostStats
	Clock    Clock
	Recorder metrics.Recorder
	Logger   logger.Logger
}

// NewSnapshotBuilder returns a builder for cfg.
func NewSnapshotBuilder(cfg SnapshotConfig) *SnapshotBuilder {
	b := &SnapshotBuilder{
		switches: cfg.Switches,
		readings: cfg.Readings,
		sampler:  cfg.Sampler,
		host:     cfg.Host,
		clock:    cfg.Clock,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}

	if b.clock == nil {
		b.clock = RealClock()
	}

	if b.recorder == nil {
		b.recorder = metrics.NoopRecorder{}
	}

	if b.logger == nil {
		b.logger = logger.NewTestLogger()
	}

	return b
}

// Build takes a fresh sample, folds it into the reading cache and returns
// a deep copy of the current state. A failed sample leaves the previous
// readings in place.
func (b *SnapshotBuilder) Build(ctx context.Context) models.StatusSnapshot {
	snap := models.StatusSnapshot{SampledAt: b.clock.Now()}

	if b.switches != nil {
		snap.Switches = b.switches.Read()
	}

	if b.sampler != nil {
		b.sample(ctx, &snap)
	}

	if b.readings != nil {
		snap.Readings = b.readings.Read()
	}

	if b.host != nil {
		stats := b.host.Collect(ctx)
		snap.UptimeSeconds = stats.UptimeSeconds
		snap.MemoryUsagePercent = stats.MemoryUsagePercent
	}

	return snap
}

func (b *SnapshotBuilder) sample(ctx context.Context, snap *models.StatusSnapshot) {
	reading, err := b.sampler.Sample(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Sensor sample failed; reporting cached readings")

		if b.readings != nil {
			cached := b.readings.Read()
			snap.Reading = &models.SensorReading{
				Temperature: cached[models.SensorChannelTemperature].Value,
				Humidity:    cached[models.SensorChannelHumidity].Value,
			}
		}

		return
	}

	snap.Reading = &reading
	b.recorder.SetSensorReading(reading.Temperature, reading.Humidity)

	if b.readings == nil {
		return
	}

	// The cache is sized SensorChannels at construction, so neither index
	// can be out of range.
	_, _ = b.readings.Apply(models.SensorChannelTemperature, reading.Temperature)
	_, _ = b.readings.Apply(models.SensorChannelHumidity, reading.Humidity)
}
