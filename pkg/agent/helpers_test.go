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
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carverauto/fieldagent/pkg/command"
	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/state"
)

var testIdentity = models.DeviceIdentity{
	ID:              "dev-1",
	Name:            "bench-switch",
	DeviceType:      models.DeviceTypeSwitch,
	FirmwareVersion: "1.0.0",
}

// manualClock only moves when Advance is called. Timers either fire
// immediately (autoFire) or never; every requested duration is recorded.
type manualClock struct {
	mu       sync.Mutex
	now      time.Time
	autoFire bool
	timers   []time.Duration
}

func newManualClock(autoFire bool) *manualClock {
	return &manualClock{
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		autoFire: autoFire,
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func (c *manualClock) Timers() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.timers...)
}

func (c *manualClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timers = append(c.timers, d)

	ch := make(chan time.Time, 1)
	if c.autoFire {
		ch <- c.now.Add(d)
	}

	return &manualTimer{ch: ch}
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	return &manualTicker{ch: make(chan time.Time, 1)}
}

type manualTimer struct {
	ch chan time.Time
}

func (t *manualTimer) Chan() <-chan time.Time { return t.ch }
func (t *manualTimer) Stop() bool             { return true }

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) Chan() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()                  {}

// recordingDispatcher executes against a real switch store and remembers
// every command it saw.
type recordingDispatcher struct {
	mu       sync.Mutex
	exec     *command.Executor
	commands []models.Command
	shutdown []string
}

func newRecordingDispatcher(t *testing.T, channels int) (*recordingDispatcher, *state.Store[bool]) {
	t.Helper()

	store, err := state.NewStore[bool](channels)
	require.NoError(t, err)

	return &recordingDispatcher{exec: command.NewExecutor(store, logger.NewTestLogger())}, store
}

func (d *recordingDispatcher) Dispatch(cmd models.Command) models.ExecutionResult {
	d.mu.Lock()
	d.commands = append(d.commands, cmd)
	d.mu.Unlock()

	return d.exec.Execute(cmd)
}

func (d *recordingDispatcher) RequestShutdown(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.shutdown = append(d.shutdown, reason)
}

func (d *recordingDispatcher) Commands() []models.Command {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]models.Command(nil), d.commands...)
}

func (d *recordingDispatcher) ShutdownReasons() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.shutdown...)
}

// countingRecorder counts source errors and remembers runtime states.
type countingRecorder struct {
	metrics.NoopRecorder

	mu           sync.Mutex
	sourceErrors map[string]int
	states       []string
	commands     []string
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{sourceErrors: make(map[string]int)}
}

func (r *countingRecorder) IncSourceError(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sourceErrors[source]++
}

func (r *countingRecorder) SetRuntimeState(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states = append(r.states, s)
}

func (r *countingRecorder) IncCommand(source, verb, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, source+"/"+verb+"/"+result)
}

func (r *countingRecorder) SourceErrors(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sourceErrors[source]
}

func (r *countingRecorder) States() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.states...)
}

func (r *countingRecorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.commands...)
}

// syncBuffer is a bytes.Buffer safe for loggers shared across goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// runAsync runs fn on a goroutine and returns its result channel.
func runAsync(fn func() error) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	return done
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for loop to return")

		return nil
	}
}

func remotePayload(t *testing.T, rc models.RemoteCommand) []byte {
	t.Helper()

	b, err := json.Marshal(rc)
	require.NoError(t, err)

	return b
}

func newBlockingInput() (*io.PipeReader, *io.PipeWriter) {
	return io.Pipe()
}
