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
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/fieldagent/pkg/command"
	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/metrics"
	"github.com/carverauto/fieldagent/pkg/models"
)

// State is the runtime lifecycle state.
type State int32

const (
	StateInit State = iota
	StateRegistering
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRegistering:
		return "registering"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrNotRunning is reported for commands dispatched outside StateRunning.
	ErrNotRunning = errors.New("agent is not running")

	errAlreadyStarted = errors.New("runtime already started")
	errNoChannels     = fmt.Errorf("%w: device has no switch channels", models.ErrOutOfRange)
)

const defaultGracePeriod = 5 * time.Second

// StopFunc releases a resource when the runtime stops.
type StopFunc func(ctx context.Context) error

// RuntimeConfig wires a Runtime.
type RuntimeConfig struct {
	// Identity is the configured identity; an empty ID triggers registration.
	Identity    models.DeviceIdentity
	Handshake   *Handshake
	Reporter    *Reporter
	Sources     []CommandSource
	Executor    Executor
	GracePeriod time.Duration
	Recorder    metrics.Recorder
	Logger      logger.Logger
	// OnStop runs, in order, once the runtime reaches Stopped.
	OnStop []StopFunc
}

// Runtime drives Init -> Registering -> Running -> Draining -> Stopped.
type Runtime struct {
	handshake *Handshake
	reporter  *Reporter
	sources   []CommandSource
	executor  Executor
	grace     time.Duration
	recorder  metrics.Recorder
	logger    logger.Logger
	onStop    []StopFunc

	state   atomic.Int32
	started atomic.Bool

	identityMu sync.RWMutex
	identity   models.DeviceIdentity

	shutdownOnce   sync.Once
	shutdownCh     chan struct{}
	shutdownReason atomic.Value

	loopsMu sync.Mutex
	loops   map[string]int
}

// NewRuntime creates a Runtime in StateInit.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	r := &Runtime{
		handshake:  cfg.Handshake,
		reporter:   cfg.Reporter,
		sources:    cfg.Sources,
		executor:   cfg.Executor,
		grace:      cfg.GracePeriod,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
		onStop:     cfg.OnStop,
		identity:   cfg.Identity,
		shutdownCh: make(chan struct{}),
		loops:      make(map[string]int),
	}

	if r.grace <= 0 {
		r.grace = defaultGracePeriod
	}

	if r.recorder == nil {
		r.recorder = metrics.NoopRecorder{}
	}

	if r.logger == nil {
		r.logger = logger.NewTestLogger()
	}

	return r
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	return State(r.state.Load())
}

// Identity returns the device identity. After Running it carries the ID.
func (r *Runtime) Identity() models.DeviceIdentity {
	r.identityMu.RLock()
	defer r.identityMu.RUnlock()

	return r.identity
}

// Run executes the whole lifecycle and returns once Stopped. A fatal
// registration failure is returned wrapping models.ErrRegistration; a
// shutdown by signal or request returns nil.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}

	r.setState(StateRegistering)

	regCtx, cancelReg := r.withShutdown(ctx)
	identity, err := r.handshake.Register(regCtx, r.Identity())

	cancelReg()

	if err != nil {
		r.stop()

		if errors.Is(err, models.ErrRegistration) {
			return err
		}

		r.logger.Info().Msg("Shutdown requested before registration completed")

		return nil
	}

	r.identityMu.Lock()
	r.identity = identity
	r.identityMu.Unlock()

	r.setState(StateRunning)

	loopErr := r.runLoops(ctx, identity)

	r.stop()

	return loopErr
}

func (r *Runtime) runLoops(ctx context.Context, identity models.DeviceIdentity) error {
	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	g, gctx := errgroup.WithContext(loopCtx)

	r.startLoop(g, r.reporter.Name(), func() error {
		return r.reporter.Run(gctx, identity)
	})

	for _, src := range r.sources {
		r.startLoop(g, src.Name(), func() error {
			if err := src.Run(gctx, identity, r); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error().Err(err).Str("source", src.Name()).Msg("Command source stopped with error")
				r.recorder.IncSourceError(src.Name())
			}

			return nil
		})
	}

	done := make(chan error, 1)

	go func() {
		done <- g.Wait()
	}()

	var (
		loopErr  error
		finished bool
	)

	select {
	case <-ctx.Done():
		r.logger.Info().Msg("Shutdown signal received")
	case <-r.shutdownCh:
		r.logger.Info().Str("reason", r.reason()).Msg("Shutdown requested")
	case loopErr = <-done:
		finished = true

		r.logger.Warn().Err(loopErr).Msg("All loops exited")
	}

	r.setState(StateDraining)
	cancelLoops()

	if !finished {
		loopErr = r.drain(done)
	}

	return loopErr
}

// drain waits up to the grace period for the loops to return and names
// any that did not.
func (r *Runtime) drain(done <-chan error) error {
	t := time.NewTimer(r.grace)
	defer t.Stop()

	select {
	case err := <-done:
		r.logger.Info().Msg("All loops stopped")

		return err
	case <-t.C:
		r.logger.Warn().
			Strs("loops", r.runningLoops()).
			Dur("grace_period", r.grace).
			Msg("Loops did not stop within grace period; abandoning")

		return nil
	}
}

func (r *Runtime) startLoop(g *errgroup.Group, name string, fn func() error) {
	r.loopsMu.Lock()
	r.loops[name]++
	r.loopsMu.Unlock()

	g.Go(func() error {
		defer func() {
			r.loopsMu.Lock()
			r.loops[name]--

			if r.loops[name] <= 0 {
				delete(r.loops, name)
			}

			r.loopsMu.Unlock()
		}()

		return fn()
	})
}

func (r *Runtime) runningLoops() []string {
	r.loopsMu.Lock()
	defer r.loopsMu.Unlock()

	names := make([]string, 0, len(r.loops))
	for name := range r.loops {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *Runtime) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), r.grace)
	defer cancel()

	for _, fn := range r.onStop {
		if err := fn(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Error releasing resource during shutdown")
		}
	}

	r.setState(StateStopped)
}

// Dispatch executes cmd while the runtime is Running.
func (r *Runtime) Dispatch(cmd models.Command) models.ExecutionResult {
	if r.State() != StateRunning {
		return models.ExecutionResult{Verb: cmd.Verb, Err: ErrNotRunning}
	}

	if r.executor == nil {
		return models.ExecutionResult{Verb: cmd.Verb, Err: errNoChannels}
	}

	return r.executor.Execute(cmd)
}

// RequestShutdown starts draining. Only the first reason is kept.
func (r *Runtime) RequestShutdown(reason string) {
	r.shutdownOnce.Do(func() {
		r.shutdownReason.Store(reason)
		close(r.shutdownCh)
	})
}

func (r *Runtime) reason() string {
	if s, ok := r.shutdownReason.Load().(string); ok {
		return s
	}

	return ""
}

// withShutdown derives a context that is also cancelled by RequestShutdown.
func (r *Runtime) withShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		select {
		case <-r.shutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func (r *Runtime) setState(s State) {
	prev := State(r.state.Swap(int32(s)))

	r.logger.Info().
		Str("from", prev.String()).
		Str("to", s.String()).
		Msg("Agent state changed")

	r.recorder.SetRuntimeState(s.String())
}

// CommandMetricsHook counts executed commands on rec.
func CommandMetricsHook(rec metrics.Recorder) command.ResultHook {
	return func(cmd models.Command, res models.ExecutionResult) {
		rec.IncCommand(cmd.Source, cmd.Verb.String(), commandResult(res))
	}
}

func commandResult(res models.ExecutionResult) string {
	switch {
	case !res.Ok():
		return "rejected"
	case len(res.Applied) > 0:
		return "applied"
	default:
		return "unchanged"
	}
}
