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

// Package command turns parsed commands into channel state changes.
package command

import (
	"errors"
	"fmt"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
	"github.com/carverauto/fieldagent/pkg/state"
)

// ChannelStore is the slice of state.Store[bool] the executor needs.
type ChannelStore interface {
	Len() int
	Apply(index int, desired bool) (state.Outcome, error)
	ReadChannel(index int) (bool, error)
	Read() []models.Channel[bool]
}

// ResultHook observes every executed command.
type ResultHook func(cmd models.Command, res models.ExecutionResult)

// Executor applies commands to a ChannelStore. It is safe for concurrent
// use by every command source; it never panics and never stops the agent.
type Executor struct {
	store  ChannelStore
	logger logger.Logger
	hooks  []ResultHook
}

// NewExecutor returns an Executor bound to store.
func NewExecutor(store ChannelStore, log logger.Logger, hooks ...ResultHook) *Executor {
	return &Executor{
		store:  store,
		logger: log,
		hooks:  hooks,
	}
}

// Execute runs cmd against the store and reports per-channel outcomes.
func (e *Executor) Execute(cmd models.Command) models.ExecutionResult {
	res := models.ExecutionResult{Verb: cmd.Verb}

	e.logger.Info().
		Str("command", cmd.String()).
		Str("source", cmd.Source).
		Str("command_id", cmd.ID).
		Msg("Executing command")

	switch cmd.Verb {
	case models.VerbOn, models.VerbOff:
		e.executeSet(&res, cmd, cmd.Verb == models.VerbOn)
	case models.VerbToggle:
		e.executeToggle(&res, cmd)
	case models.VerbAllOn, models.VerbAllOff:
		for i := 0; i < e.store.Len(); i++ {
			e.apply(&res, i, cmd.Verb == models.VerbAllOn)
		}
	case models.VerbStatus:
		res.Channels = e.store.Read()
	case models.VerbUnknown:
		res.Err = fmt.Errorf("%w: %s", models.ErrUnknownCommand, cmd.Verb)
	default:
		res.Err = fmt.Errorf("%w: verb %d", models.ErrUnknownCommand, int(cmd.Verb))
	}

	if !res.Ok() {
		e.logRejection(cmd, res)
	}

	for _, hook := range e.hooks {
		hook(cmd, res)
	}

	return res
}

func (e *Executor) executeSet(res *models.ExecutionResult, cmd models.Command, desired bool) {
	if cmd.Channel == nil {
		res.Err = models.ErrMissingChannel

		return
	}

	e.apply(res, *cmd.Channel, desired)
}

// executeToggle reads then writes without holding the store lock across
// both steps, so two concurrent toggles may both observe the same value.
func (e *Executor) executeToggle(res *models.ExecutionResult, cmd models.Command) {
	if cmd.Channel == nil {
		res.Err = models.ErrMissingChannel

		return
	}

	idx := *cmd.Channel

	current, err := e.store.ReadChannel(idx)
	if err != nil {
		res.Rejected = append(res.Rejected, idx)
		res.Err = err

		return
	}

	e.apply(res, idx, !current)
}

func (e *Executor) apply(res *models.ExecutionResult, idx int, desired bool) {
	outcome, err := e.store.Apply(idx, desired)

	switch outcome {
	case state.Changed:
		res.Applied = append(res.Applied, idx)
	case state.Unchanged:
		res.Unchanged = append(res.Unchanged, idx)
	case state.OutOfRange:
		res.Rejected = append(res.Rejected, idx)
		res.Err = errors.Join(res.Err, err)
	}
}

func (e *Executor) logRejection(cmd models.Command, res models.ExecutionResult) {
	e.logger.Warn().
		Err(res.Err).
		Str("command", cmd.String()).
		Str("source", cmd.Source).
		Ints("rejected", res.Rejected).
		Int("num_channels", e.store.Len()).
		Msg("Command rejected")
}
