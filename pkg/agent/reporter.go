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
)

// ErrUnregistered is returned by loops started without a device ID.
var ErrUnregistered = errors.New("device is not registered")

// CycleHook observes every report cycle after the transmit attempt.
type CycleHook func(cycle uint64, snapshot models.StatusSnapshot, err error)

// Reporter periodically transmits status snapshots. The first report goes
// out immediately; each following cycle starts one interval after the
// previous one started, or immediately if that attempt overran the
// interval. A failed report is logged and dropped.
type Reporter struct {
	transport StatusReporter
	snapshots *SnapshotBuilder
	interval  time.Duration
	clock     Clock
	recorder  metrics.Recorder
	logger    logger.Logger
	onCycle   CycleHook
}

// ReporterConfig wires a Reporter.
type ReporterConfig struct {
	Transport StatusReporter
	Snapshots *SnapshotBuilder
	Interval  time.Duration
	Clock     Clock
	Recorder  metrics.Recorder
	Logger    logger.Logger
	OnCycle   CycleHook
}

// NewReporter creates a Reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	r := &Reporter{
		transport: cfg.Transport,
		snapshots: cfg.Snapshots,
		interval:  cfg.Interval,
		clock:     cfg.Clock,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		onCycle:   cfg.OnCycle,
	}

	if r.clock == nil {
		r.clock = RealClock()
	}

	if r.recorder == nil {
		r.recorder = metrics.NoopRecorder{}
	}

	if r.logger == nil {
		r.logger = logger.NewTestLogger()
	}

	return r
}

// Name implements the loop naming used in shutdown logs.
func (*Reporter) Name() string {
	return "reporter"
}

// Run reports until ctx is cancelled. It returns nil on cancellation.
func (r *Reporter) Run(ctx context.Context, identity models.DeviceIdentity) error {
	if !identity.Registered() {
		return ErrUnregistered
	}

	r.logger.Info().Dur("interval", r.interval).Msg("Starting report loop")

	for cycle := uint64(1); ; cycle++ {
		if ctx.Err() != nil {
			break
		}

		start := r.clock.Now()

		r.reportOnce(ctx, identity.ID, cycle)

		wait := r.interval - r.clock.Now().Sub(start)
		if wait <= 0 {
			r.logger.Debug().Uint64("cycle", cycle).Msg("Report overran interval; starting next cycle now")
		}

		if err := sleep(ctx, r.clock, wait); err != nil {
			break
		}
	}

	r.logger.Info().Msg("Report loop stopping due to context cancellation")

	return nil
}

func (r *Reporter) reportOnce(ctx context.Context, deviceID string, cycle uint64) {
	snap := r.snapshots.Build(ctx)

	start := r.clock.Now()
	err := r.transport.ReportStatus(ctx, deviceID, snap)
	elapsed := r.clock.Now().Sub(start)

	r.recorder.ObserveReport(elapsed, err == nil)

	if err != nil {
		r.logger.Warn().
			Err(err).
			Uint64("cycle", cycle).
			Msg("Failed to report status")
	} else {
		ev := r.logger.Debug().
			Uint64("cycle", cycle).
			Dur("duration", elapsed).
			Uint64("total_toggles", snap.TotalToggles())

		if snap.Reading != nil {
			ev = ev.Float64("temperature", snap.Reading.Temperature).
				Float64("humidity", snap.Reading.Humidity)
		}

		ev.Msg("Reported status")
	}

	if r.onCycle != nil {
		r.onCycle(cycle, snap, err)
	}
}
