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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fieldagent/pkg/command"
	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/state"
)

// scriptedSource dispatches a fixed list of commands and then asks the
// runtime to stop.
type scriptedSource struct {
	commands []models.Command
	results  []models.ExecutionResult
}

func (*scriptedSource) Name() string { return "script" }

func (s *scriptedSource) Run(_ context.Context, _ models.DeviceIdentity, d Dispatcher) error {
	for _, cmd := range s.commands {
		s.results = append(s.results, d.Dispatch(cmd))
	}

	d.RequestShutdown("script finished")

	return nil
}

// stubbornSource ignores cancellation until released.
type stubbornSource struct {
	started chan struct{}
	release chan struct{}
}

func (*stubbornSource) Name() string { return "stubborn" }

func (s *stubbornSource) Run(context.Context, models.DeviceIdentity, Dispatcher) error {
	close(s.started)
	<-s.release

	return nil
}

type runtimeRig struct {
	store     *state.Store[bool]
	registrar *MockRegistrar
	transport *MockStatusReporter
	recorder  *countingRecorder
	logs      *syncBuffer
}

func newRuntimeRig(t *testing.T, ctrl *gomock.Controller) *runtimeRig {
	t.Helper()

	store, err := state.NewStore[bool](4)
	require.NoError(t, err)

	return &runtimeRig{
		store:     store,
		registrar: NewMockRegistrar(ctrl),
		transport: NewMockStatusReporter(ctrl),
		recorder:  newCountingRecorder(),
		logs:      &syncBuffer{},
	}
}

func (rig *runtimeRig) runtime(identity models.DeviceIdentity, hs HandshakeConfig, sources []CommandSource, opts ...func(*RuntimeConfig)) *Runtime {
	log := logger.NewWriterLogger(rig.logs)

	cfg := RuntimeConfig{
		Identity:  identity,
		Handshake: NewHandshake(rig.registrar, hs, nil, rig.recorder, log),
		Reporter: NewReporter(ReporterConfig{
			Transport: rig.transport,
			Snapshots: NewSnapshotBuilder(SnapshotConfig{Switches: rig.store}),
			Interval:  time.Hour,
			Recorder:  rig.recorder,
			Logger:    log,
		}),
		Sources:  sources,
		Executor: command.NewExecutor(rig.store, log, CommandMetricsHook(rig.recorder)),
		Recorder: rig.recorder,
		Logger:   log,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return NewRuntime(cfg)
}

func TestRuntimeEndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rig := newRuntimeRig(t, ctrl)

	rig.registrar.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(models.RegistrationResponse{ID: "sw-42"}, nil)
	rig.transport.EXPECT().ReportStatus(gomock.Any(), "sw-42", gomock.Any()).Return(nil).AnyTimes()

	src := &scriptedSource{commands: []models.Command{
		{Verb: models.VerbOn, Channel: models.ChannelIndex(2), Source: "script"},
		{Verb: models.VerbToggle, Channel: models.ChannelIndex(2), Source: "script"},
		{Verb: models.VerbOff, Channel: models.ChannelIndex(2), Source: "script"},
		{Verb: models.VerbAllOn, Source: "script"},
		{Verb: models.VerbOn, Channel: models.ChannelIndex(9), Source: "script"},
	}}

	var stopped []string

	rt := rig.runtime(unregistered(models.DeviceTypeSwitch), HandshakeConfig{NumChannels: 4, FailOnError: true},
		[]CommandSource{src},
		func(cfg *RuntimeConfig) {
			cfg.OnStop = []StopFunc{
				func(context.Context) error {
					stopped = append(stopped, "transport")

					return nil
				},
				func(context.Context) error {
					stopped = append(stopped, "metrics")

					return errors.New("already closed")
				},
			}
		})

	require.NoError(t, rt.Run(context.Background()))

	assert.Equal(t, StateStopped, rt.State())
	assert.Equal(t, "sw-42", rt.Identity().ID)
	assert.Equal(t, []string{"transport", "metrics"}, stopped)

	for _, ch := range rig.store.Read() {
		assert.True(t, ch.Value, "channel %d", ch.Index)
	}

	ch, err := rig.store.Channel(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ch.ChangeCount)

	require.Len(t, src.results, 5)
	assert.Equal(t, []int{2}, src.results[2].Unchanged)
	assert.ErrorIs(t, src.results[4].Err, models.ErrOutOfRange)

	assert.Equal(t, []string{"registering", "running", "draining", "stopped"}, rig.recorder.States())
	assert.Equal(t, []string{
		"script/on/applied",
		"script/toggle/applied",
		"script/off/unchanged",
		"script/all_on/applied",
		"script/on/rejected",
	}, rig.recorder.Commands())
	assert.Contains(t, rig.logs.String(), "script finished")
}

func TestRuntimeFatalRegistration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rig := newRuntimeRig(t, ctrl)
	rig.registrar.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(models.RegistrationResponse{}, errors.New("connection refused"))

	closed := false
	rt := rig.runtime(unregistered(models.DeviceTypeSensor), HandshakeConfig{FailOnError: true}, nil,
		func(cfg *RuntimeConfig) {
			cfg.OnStop = []StopFunc{func(context.Context) error {
				closed = true

				return nil
			}}
		})

	err := rt.Run(context.Background())
	require.ErrorIs(t, err, models.ErrRegistration)
	assert.Equal(t, StateStopped, rt.State())
	assert.True(t, closed)
	assert.NotContains(t, rig.recorder.States(), "running")
}

func TestRuntimeShutdownDuringSoftRegistration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rig := newRuntimeRig(t, ctrl)

	var rt *Runtime

	rig.registrar.EXPECT().Register(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.RegistrationRequest) (models.RegistrationResponse, error) {
			rt.RequestShutdown("operator quit")

			return models.RegistrationResponse{}, errors.New("503")
		})

	rt = rig.runtime(unregistered(models.DeviceTypeSwitch), HandshakeConfig{RetryInterval: time.Hour}, nil)

	require.NoError(t, waitResult(t, runAsync(func() error { return rt.Run(context.Background()) })))
	assert.Equal(t, StateStopped, rt.State())
}

func TestRuntimeAbandonsLoopsAfterGracePeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rig := newRuntimeRig(t, ctrl)
	rig.transport.EXPECT().ReportStatus(gomock.Any(), "dev-1", gomock.Any()).Return(nil).AnyTimes()

	src := &stubbornSource{started: make(chan struct{}), release: make(chan struct{})}
	defer close(src.release)

	rt := rig.runtime(testIdentity, HandshakeConfig{}, []CommandSource{src},
		func(cfg *RuntimeConfig) { cfg.GracePeriod = 50 * time.Millisecond })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := runAsync(func() error { return rt.Run(ctx) })

	<-src.started
	cancel()

	require.NoError(t, waitResult(t, done))
	assert.Equal(t, StateStopped, rt.State())

	logs := rig.logs.String()
	assert.Contains(t, logs, "abandoning")
	assert.Contains(t, logs, "stubborn")
}

func TestRuntimeRejectsDispatchOutsideRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rig := newRuntimeRig(t, ctrl)
	rt := rig.runtime(testIdentity, HandshakeConfig{}, nil)

	res := rt.Dispatch(models.Command{Verb: models.VerbAllOn})
	require.ErrorIs(t, res.Err, ErrNotRunning)
	assert.False(t, res.Ok())

	ch, err := rig.store.Channel(0)
	require.NoError(t, err)
	assert.False(t, ch.Value)
}

func TestRuntimeRunsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rig := newRuntimeRig(t, ctrl)
	rig.transport.EXPECT().ReportStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	rt := rig.runtime(testIdentity, HandshakeConfig{}, []CommandSource{&scriptedSource{}})

	require.NoError(t, rt.Run(context.Background()))
	require.ErrorIs(t, rt.Run(context.Background()), errAlreadyStarted)
}

func TestRequestShutdownKeepsFirstReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rt := newRuntimeRig(t, ctrl).runtime(testIdentity, HandshakeConfig{}, nil)

	rt.RequestShutdown("first")
	rt.RequestShutdown("second")

	assert.Equal(t, "first", rt.reason())
}

func TestCommandResultLabels(t *testing.T) {
	tests := []struct {
		name string
		res  models.ExecutionResult
		want string
	}{
		{name: "applied", res: models.ExecutionResult{Applied: []int{1}}, want: "applied"},
		{name: "unchanged", res: models.ExecutionResult{Unchanged: []int{1}}, want: "unchanged"},
		{name: "rejected", res: models.ExecutionResult{Rejected: []int{7}}, want: "rejected"},
		{name: "error", res: models.ExecutionResult{Err: models.ErrUnknownCommand}, want: "rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandResult(tt.res))
		})
	}
}
