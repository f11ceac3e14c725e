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

// Package agent runs the field device: registration, the status report
// loop, the command sources and the lifecycle that ties them together.
package agent

import (
	"context"
	"time"

	"github.com/carverauto/fieldagent/pkg/models"
)

//go:generate mockgen -destination=mock_agent.go -package=agent github.com/carverauto/fieldagent/pkg/agent Registrar,StatusReporter,CommandPoller,HostStats

// Registrar performs the registration call against the panel.
type Registrar interface {
	Register(ctx context.Context, req models.RegistrationRequest) (models.RegistrationResponse, error)
}

// StatusReporter transmits one status snapshot.
type StatusReporter interface {
	ReportStatus(ctx context.Context, deviceID string, snapshot models.StatusSnapshot) error
}

// CommandPoller fetches queued commands for a device.
type CommandPoller interface {
	PendingCommands(ctx context.Context, deviceID string) ([]models.RemoteCommand, error)
}

// HostStats reports host uptime and memory usage.
type HostStats interface {
	Collect(ctx context.Context) models.HostStats
}

// Executor applies a command to device state.
type Executor interface {
	Execute(cmd models.Command) models.ExecutionResult
}

// Dispatcher is what a CommandSource hands its commands to.
type Dispatcher interface {
	Dispatch(cmd models.Command) models.ExecutionResult
	RequestShutdown(reason string)
}

// CommandSource produces commands until ctx is cancelled. Run must return
// promptly after cancellation and must not dispatch once ctx is done.
type CommandSource interface {
	Name() string
	Run(ctx context.Context, identity models.DeviceIdentity, d Dispatcher) error
}

// Clock abstracts time for the loops.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer abstracts a one-shot timer.
type Timer interface {
	Chan() <-chan time.Time
	Stop() bool
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}
